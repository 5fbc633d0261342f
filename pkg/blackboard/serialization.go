package blackboard

import (
	"fmt"
	"strconv"
)

// CurrentPoseToHash converts a CurrentPose to Redis hash format.
func CurrentPoseToHash(p *CurrentPose) map[string]interface{} {
	return map[string]interface{}{
		"x":                  strconv.FormatFloat(p.X, 'g', -1, 64),
		"y":                  strconv.FormatFloat(p.Y, 'g', -1, 64),
		"yaw":                strconv.FormatFloat(p.Yaw, 'g', -1, 64),
		"localization_state": p.LocalizationState,
		"updated_at_ms":      p.UpdatedAtMs,
	}
}

// HashToCurrentPose converts a Redis hash back to a CurrentPose.
func HashToCurrentPose(hash map[string]string) (*CurrentPose, error) {
	p := &CurrentPose{}
	var err error
	if p.X, err = strconv.ParseFloat(hash["x"], 64); err != nil {
		return nil, fmt.Errorf("invalid x field: %w", err)
	}
	if p.Y, err = strconv.ParseFloat(hash["y"], 64); err != nil {
		return nil, fmt.Errorf("invalid y field: %w", err)
	}
	if p.Yaw, err = strconv.ParseFloat(hash["yaw"], 64); err != nil {
		return nil, fmt.Errorf("invalid yaw field: %w", err)
	}
	state, err := strconv.ParseInt(hash["localization_state"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid localization_state field: %w", err)
	}
	p.LocalizationState = int32(state)
	p.UpdatedAtMs, _ = strconv.ParseInt(hash["updated_at_ms"], 10, 64)
	return p, nil
}
