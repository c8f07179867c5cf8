package events

// Topic constants for domain events emitted by the platform.
const (
	TopicQuotePriced    = "quote.priced"
	TopicGroupCreated   = "group.created"
	TopicGroupValidated = "group.validated"
	TopicGroupPaid      = "group.paid"
	TopicGroupShipped   = "group.shipped"
	TopicGroupDissolved = "group.dissolved"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicQuotePriced,
		TopicGroupCreated,
		TopicGroupValidated,
		TopicGroupPaid,
		TopicGroupShipped,
		TopicGroupDissolved,
	}
}
