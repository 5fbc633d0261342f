package blackboard

import "fmt"

// HistoryLimit is the number of seed events kept in the history set.
const HistoryLimit = 1000

// SeedEventsChannel returns the Pub/Sub channel for seed events.
// Format: locbridge:{instance_name}:seed_events
func SeedEventsChannel(instanceName string) string {
	return fmt.Sprintf("locbridge:%s:seed_events", instanceName)
}

// SeedHistoryKey returns the ZSET holding recent seed events.
// Format: locbridge:{instance_name}:seed_history
func SeedHistoryKey(instanceName string) string {
	return fmt.Sprintf("locbridge:%s:seed_history", instanceName)
}

// CurrentPoseKey returns the hash holding the latest seed zero pose.
// Format: locbridge:{instance_name}:current_pose
func CurrentPoseKey(instanceName string) string {
	return fmt.Sprintf("locbridge:%s:current_pose", instanceName)
}

// HistoryScore converts an event timestamp to its ZSET score.
func HistoryScore(timestampMs int64) float64 {
	return float64(timestampMs)
}
