package client

import (
	"encoding/json"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/robostack/swervechar/pkg/swerve"
)

// TestRequest is the payload for starting a characterization test.
type TestRequest struct {
	Test      string `json:"test"`      // "quasistatic" or "dynamic"
	Direction string `json:"direction"` // "forward" or "reverse"
}

func (c *Client) GetRoutine() (swerve.RoutineKind, error) {
	ret, err := c.Get("/routine")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get active routine")
	}
	var kind string
	if err := json.Unmarshal([]byte(ret), &kind); err != nil {
		return "", fmt.Errorf("failed to unmarshal active routine: %w", err)
	}
	return swerve.RoutineKind(kind), nil
}

func (c *Client) SetRoutine(kind swerve.RoutineKind) (string, error) {
	payload, err := json.Marshal(string(kind))
	if err != nil {
		return "", err
	}
	return c.Put("/routine", string(payload))
}

func (c *Client) StartTest(test, direction string) (string, error) {
	payload, err := json.Marshal(TestRequest{Test: test, Direction: direction})
	if err != nil {
		return "", err
	}
	return c.Post("/tests", string(payload))
}

func (c *Client) Cancel() (string, error) {
	return c.Post("/cancel", "")
}

func (c *Client) GetStatus() (*swerve.Status, error) {
	ret, err := c.Get("/status")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get status")
	}
	var st swerve.Status
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &st, nil
}

func (c *Client) GetSchedule() (string, error) {
	ret, err := c.Get("/schedule")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get schedule")
	}
	var cron string
	if err := json.Unmarshal([]byte(ret), &cron); err != nil {
		return "", fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	return cron, nil
}

// SetSchedule configures the cron expression for automatic characterization
// passes. An empty expression disables the schedule. Returns the next
// scheduled run times.
func (c *Client) SetSchedule(cron string) ([]time.Time, error) {
	payload, err := json.Marshal(cron)
	if err != nil {
		return nil, err
	}
	ret, err := c.Put("/schedule", string(payload))
	if err != nil {
		return nil, err
	}
	var next []time.Time
	if ret != "" {
		if err := json.Unmarshal([]byte(ret), &next); err != nil {
			return nil, fmt.Errorf("failed to unmarshal next runs: %w", err)
		}
	}
	return next, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get daemon version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", fmt.Errorf("failed to unmarshal version: %w", err)
	}
	return v, nil
}
