package config

// BrokerConfig points the mail dispatcher at RabbitMQ. An empty URL disables
// publishing; codes are then only logged.
type BrokerConfig struct {
	URL       string
	MailQueue string
	// ConsumerLog is where the in-process consumer appends delivered mails.
	ConsumerLog string
}

func LoadBrokerConfig() BrokerConfig {
	return BrokerConfig{
		URL:         getenv("RABBITMQ_URL", ""),
		MailQueue:   getenv("MAIL_QUEUE", "mail.outbound"),
		ConsumerLog: getenv("MAIL_CONSUMER_LOG", "logs/mail.log"),
	}
}
