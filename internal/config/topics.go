package config

const (
	// TopicTaskAssign carries broadcast template records to be expanded into
	// one task per worker.
	TopicTaskAssign = "task.assign"

	// ChannelAssignmentWorker is the consumer channel for TopicTaskAssign.
	ChannelAssignmentWorker = "assignment-worker"
)
