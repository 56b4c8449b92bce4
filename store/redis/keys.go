package redis

// Redis key naming conventions for queued data.
// All keys are prefixed with "queued:" to avoid collisions.

const keyPrefix = "queued:"

// jobKey returns the key for a job record blob: queued:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// pendingKey is the Sorted Set of pending job IDs, scored by creation
// time. Ties share a score, and Redis orders equal-score members
// lexicographically, which matches the id-ascending claim order.
const pendingKey = keyPrefix + "pending"

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"
