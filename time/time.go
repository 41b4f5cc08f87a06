// SPDX-License-Identifier: ice License 1.0

package time

import (
	stdlibtime "time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

func Now() *Time {
	now := stdlibtime.Now().UTC()

	return &Time{
		Time: &now,
	}
}

func New(time stdlibtime.Time) *Time {
	return &Time{
		Time: &time,
	}
}

func (t *Time) MarshalJSON() ([]byte, error) {
	if t == nil || t.Time == nil || t.UnixNano() == 0 {
		return []byte("null"), nil
	}
	if t.Location() != stdlibtime.UTC {
		*t.Time = t.Time.UTC()
	}

	return json.Marshal(t.Time) //nolint:wrapcheck // We're just proxying it.
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	t.Time = new(stdlibtime.Time)
	if err := json.Unmarshal(data, t.Time); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %v into time", string(data))
	}
	*t.Time = t.Time.UTC()

	return nil
}
