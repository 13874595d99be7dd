// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

// assignRooms partitions an ordered room list across workers: room i goes to
// worker i mod workers. The mapping is deterministic, computed once at pool
// start, and stable for the pool's lifetime; a worker owns its rooms until
// shutdown, which is what gives each room a single consuming owner.
//
// Example: 10 rooms over 4 workers →
//
//	worker 0: [r0 r4 r8]
//	worker 1: [r1 r5 r9]
//	worker 2: [r2 r6]
//	worker 3: [r3 r7]
func assignRooms(rooms []string, workers int) [][]string {
	if workers <= 0 || len(rooms) == 0 {
		return nil
	}
	// Never more workers than rooms.
	if workers > len(rooms) {
		workers = len(rooms)
	}

	assignments := make([][]string, workers)
	for i, room := range rooms {
		w := i % workers
		assignments[w] = append(assignments[w], room)
	}
	return assignments
}
