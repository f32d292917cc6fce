// Package eventbus implements the realtime event bus (§4.10): envelope
// construction, per-stream sequence assignment, and room-key fanout over a
// namespaced pub/sub surface.
package eventbus

import "strings"

// RoomPrefixes is the whitelist enforced identically by the key builders
// below and by the subscribe validator in cmd/fanout — per spec.md §9(c),
// "additional prefixes must be added in both... simultaneously."
var RoomPrefixes = map[string]bool{
	"task":           true,
	"run":            true,
	"flowchart":      true,
	"flowchart_run":  true,
	"flowchart_node": true,
	"thread":         true,
	"download_job":   true,
}

// ValidRoomKey reports whether room has a whitelisted prefix and a
// non-empty suffix (e.g. "task:123").
func ValidRoomKey(room string) bool {
	prefix, suffix, found := strings.Cut(room, ":")
	return found && RoomPrefixes[prefix] && suffix != ""
}

// RoomKey builds "<prefix>:<value>", or "" if value is empty after
// trimming. Mirrors realtime_events.py's room_key.
func RoomKey(prefix string, value string) string {
	suffix := strings.TrimSpace(value)
	if suffix == "" {
		return ""
	}
	return prefix + ":" + suffix
}

// CombineRoomKeys flattens any number of room-key groups into one
// deduplicated, order-preserving list, dropping blanks. Mirrors
// realtime_events.py's combine_room_keys.
func CombineRoomKeys(groups ...[]string) []string {
	var unique []string
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, raw := range group {
			room := strings.TrimSpace(raw)
			if room == "" || seen[room] {
				continue
			}
			seen[room] = true
			unique = append(unique, room)
		}
	}
	return unique
}

func nonEmpty(room string) []string {
	if room == "" {
		return nil
	}
	return []string{room}
}

// TaskScopeRooms builds the room-key set for a task-scoped event, optionally
// widened with run/flowchart/flowchart-run/flowchart-node context.
func TaskScopeRooms(taskID, runID, flowchartID, flowchartRunID, flowchartNodeID string) []string {
	return CombineRoomKeys(
		nonEmpty(RoomKey("task", taskID)),
		nonEmpty(RoomKey("run", runID)),
		nonEmpty(RoomKey("flowchart", flowchartID)),
		nonEmpty(RoomKey("flowchart_run", flowchartRunID)),
		nonEmpty(RoomKey("flowchart_node", flowchartNodeID)),
	)
}

// FlowchartScopeRooms builds the room-key set for a flowchart/run/node-scoped
// event.
func FlowchartScopeRooms(flowchartID, flowchartRunID, flowchartNodeID string) []string {
	return CombineRoomKeys(
		nonEmpty(RoomKey("flowchart", flowchartID)),
		nonEmpty(RoomKey("flowchart_run", flowchartRunID)),
		nonEmpty(RoomKey("flowchart_node", flowchartNodeID)),
	)
}

// ThreadScopeRooms builds the room-key set for a thread-scoped event.
func ThreadScopeRooms(threadID string) []string {
	return CombineRoomKeys(nonEmpty(RoomKey("thread", threadID)))
}

// DownloadScopeRooms builds the room-key set for a download-job-scoped
// event.
func DownloadScopeRooms(jobID string) []string {
	return CombineRoomKeys(nonEmpty(RoomKey("download_job", jobID)))
}
