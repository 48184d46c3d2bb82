package redis

// Redis key naming for metro data. The layout is a compatibility surface
// shared with other metro worker processes; do not change it casually.

// queueKey returns the List key for a queue: queue:{name}
func queueKey(name string) string { return "queue:" + name }

// scheduledKey returns the Sorted Set key for a queue's delayed tasks:
// scheduled_jobs:{name}. Members are task JSON, scores are due unix times.
func scheduledKey(name string) string { return "scheduled_jobs:" + name }

// batchKey returns the List key for a batch accumulator: batch:{class}
func batchKey(name string) string { return "batch:" + name }

// batchStartTimesKey is the Hash holding one start-time field per batch.
const batchStartTimesKey = "batch_start_times"

// lockKey returns the key holding a lock token: lock:{name}
func lockKey(name string) string { return "lock:" + name }

// statusKey returns the Hash key for a task's status record: job_status:{id}
func statusKey(taskID string) string { return "job_status:" + taskID }
