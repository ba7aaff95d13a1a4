package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env                   string `mapstructure:"env"`
	Port                  int    `mapstructure:"port"`
	JWTSecret             string `mapstructure:"jwt_secret"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

type MongoConfig struct {
	URI                     string `mapstructure:"uri"`
	Database                string `mapstructure:"database"`
	MessagesCollection      string `mapstructure:"messages_collection"`
	ConversationsCollection string `mapstructure:"conversations_collection"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers                  []string `mapstructure:"brokers"`
	TopicMessageCreated      string   `mapstructure:"topic_message_created"`
	TopicConversationCreated string   `mapstructure:"topic_conversation_created"`
}

type WSConfig struct {
	PingIntervalSeconds int   `mapstructure:"ping_interval_seconds"`
	WriteTimeoutSeconds int   `mapstructure:"write_timeout_seconds"`
	PongTimeoutSeconds  int   `mapstructure:"pong_timeout_seconds"`
	MaxMessageBytes     int64 `mapstructure:"max_message_bytes"`
	SendBufferSize      int   `mapstructure:"send_buffer_size"`
	PresenceTTLSeconds  int   `mapstructure:"presence_ttl_seconds"`
}

type RateLimitConfig struct {
	Limit         int `mapstructure:"limit"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Mongo     MongoConfig     `mapstructure:"mongodb"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	WS        WSConfig        `mapstructure:"ws"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// derived values
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PresenceTTL     time.Duration
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration
}

// envBindings maps config keys to the APP_* variables that override them.
// Bindings are explicit: viper's automatic env lookup does not reach nested
// keys through Unmarshal.
var envBindings = map[string]string{
	"app.env":          "APP_ENV",
	"app.port":         "APP_PORT",
	"app.jwt_secret":   "APP_JWT_SECRET",
	"mongodb.uri":      "APP_MONGODB_URI",
	"mongodb.database": "APP_MONGODB_DATABASE",
	"redis.addr":       "APP_REDIS_ADDR",
	"redis.password":   "APP_REDIS_PASSWORD",
}

// Load reads config from path; keys listed in envBindings can be overridden
// through the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	applyDefaults(&c)
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 8084
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.RequestTimeoutSeconds == 0 {
		c.App.RequestTimeoutSeconds = 10
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "launchpad"
	}
	if c.Mongo.MessagesCollection == "" {
		c.Mongo.MessagesCollection = "messages"
	}
	if c.Mongo.ConversationsCollection == "" {
		c.Mongo.ConversationsCollection = "conversations"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "msg"
	}
	if c.Kafka.TopicMessageCreated == "" {
		c.Kafka.TopicMessageCreated = "message.created"
	}
	if c.Kafka.TopicConversationCreated == "" {
		c.Kafka.TopicConversationCreated = "conversation.created"
	}
	if c.WS.PingIntervalSeconds == 0 {
		c.WS.PingIntervalSeconds = 30
	}
	if c.WS.WriteTimeoutSeconds == 0 {
		c.WS.WriteTimeoutSeconds = 10
	}
	if c.WS.PongTimeoutSeconds == 0 {
		c.WS.PongTimeoutSeconds = 60
	}
	if c.WS.MaxMessageBytes == 0 {
		c.WS.MaxMessageBytes = 64 * 1024
	}
	if c.WS.SendBufferSize == 0 {
		c.WS.SendBufferSize = 256
	}
	if c.WS.PresenceTTLSeconds == 0 {
		c.WS.PresenceTTLSeconds = 24 * 60 * 60
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 30
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}

	c.PingInterval = time.Duration(c.WS.PingIntervalSeconds) * time.Second
	c.WriteTimeout = time.Duration(c.WS.WriteTimeoutSeconds) * time.Second
	c.PongTimeout = time.Duration(c.WS.PongTimeoutSeconds) * time.Second
	c.PresenceTTL = time.Duration(c.WS.PresenceTTLSeconds) * time.Second
	c.RateLimitWindow = time.Duration(c.RateLimit.WindowSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.App.RequestTimeoutSeconds) * time.Second
}
