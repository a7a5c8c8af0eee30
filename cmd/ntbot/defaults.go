package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Sidecar (desktop chat automation service)
	viper.SetDefault("ntchat.base_url", "http://127.0.0.1:8000")
	viper.SetDefault("ntchat.max_concurrency", 3)
	viper.SetDefault("ntchat.queue_size", 16)

	// Image generation
	viper.SetDefault("paint.base_url", "https://api.link-ai.chat/v1/img/midjourney")
	viper.SetDefault("paint.api_key", "")
	viper.SetDefault("paint.mode", "fast")
	viper.SetDefault("paint.auto_translate", false)
	viper.SetDefault("paint.img_proxy", true)
	viper.SetDefault("paint.max_tasks_per_user", 3)
	viper.SetDefault("paint.max_tasks", 20)
	viper.SetDefault("paint.task_ttl", 30*time.Minute)
	viper.SetDefault("paint.poll_interval", 10*time.Second)
	viper.SetDefault("paint.trigger_prefix", "$")

	// Health endpoint; empty disables it.
	viper.SetDefault("health.listen", "")
}
