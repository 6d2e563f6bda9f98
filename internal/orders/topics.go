package orders

// TopicOrderEvents carries every order event; consumers switch on event_type.
// Events are keyed by order id so one order's events stay on one partition.
const TopicOrderEvents = "order.events"
