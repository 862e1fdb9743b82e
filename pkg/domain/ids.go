// Package domain provides typed identifiers so request and parcel ids cannot
// be swapped at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "jagga/pkg/domain-errors"
)

type (
	// RequestID identifies a lifecycle request.
	RequestID uuid.UUID
	// ParcelID identifies a registered parcel.
	ParcelID uuid.UUID
)

func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id RequestID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ParcelID) String() string { return uuid.UUID(id).String() }
func (id ParcelID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewRequestID allocates a fresh request id.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewParcelID allocates a fresh parcel id.
func NewParcelID() ParcelID { return ParcelID(uuid.New()) }

// ParseRequestID parses and validates a request id from a path or payload.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parse(s)
	if err != nil {
		return RequestID{}, err
	}
	return RequestID(u), nil
}

// ParseParcelID parses and validates a parcel id from a path or payload.
func ParseParcelID(s string) (ParcelID, error) {
	u, err := parse(s)
	if err != nil {
		return ParcelID{}, err
	}
	return ParcelID(u), nil
}

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, "id must be a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be the nil uuid")
	}
	return u, nil
}
