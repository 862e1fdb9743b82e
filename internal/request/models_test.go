package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:  {StatusProposed},
		StatusProposed: {StatusApproved, StatusRejected},
	}

	statuses := []Status{StatusPending, StatusProposed, StatusApproved, StatusRejected}
	for _, from := range statuses {
		for _, to := range statuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProposed.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeRegistration.Valid())
	assert.True(t, TypeTransfer.Valid())
	assert.False(t, Type("lease").Valid())
	assert.False(t, Type("").Valid())
}
