package config

const (
	// TopicChatMessage carries every chat message stored for a session.
	TopicChatMessage = "chat.message"

	// TopicVectorIngest carries record batches to index into the Supabase store.
	TopicVectorIngest = "vectorstore.ingest"

	// ChannelIngest is the consumer channel the ingest worker reads from.
	ChannelIngest = "flowkit"
)
