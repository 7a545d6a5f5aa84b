package kafka

// Default topic names. The server overrides the request log and control
// topics from configuration.
const (
	TopicRequestLog    = "queue.requests"
	TopicQueueRelease  = "queue.release"
	TopicQueueReleased = "queue.released"
)

const (
	ReleaseSourceHTTP  = "http"
	ReleaseSourceGRPC  = "grpc"
	ReleaseSourceKafka = "kafka"
)
