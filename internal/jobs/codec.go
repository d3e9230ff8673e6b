package jobs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geocoder89/devhub/internal/domain/job"
)

func EncodePayload(t string, payload any) ([]byte, error) {
	if !IsKnownType(t) {
		return nil, ErrInvalidJobType
	}

	switch t {
	case TypePurgeUserActivity:
		_, ok := payload.(PurgeUserActivityPayload)

		if !ok {
			_, ok2 := payload.(*PurgeUserActivityPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the typed payload struct for j.Type.
func DecodePayload(j job.Job) (any, error) {
	if !IsKnownType(j.Type) {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch j.Type {
	case TypePurgeUserActivity:
		var p PurgeUserActivityPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		if err := ValidatePayload(j.Type, p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t string, payload any) error {
	switch t {
	case TypePurgeUserActivity:
		var p PurgeUserActivityPayload
		switch v := payload.(type) {
		case PurgeUserActivityPayload:
			p = v
		case *PurgeUserActivityPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if strings.TrimSpace(p.UserID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
