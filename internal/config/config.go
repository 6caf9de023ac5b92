package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Video   VideoConfig
	Pose    PoseConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	video, err := loadVideoConfig()
	if err != nil {
		return nil, err
	}

	pose, err := loadPoseConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Storage: storage, Video: video, Pose: pose}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StorageConfig 描述会话与凭证数据的磁盘存放位置。
type StorageConfig struct {
	Root         string
	UsersFile    string
	MaxDiskBytes int64
}

func loadStorageConfig() (StorageConfig, error) {
	maxGB := 100
	if override, err := parseOptionalIntEnv("MAX_DISK_USAGE_GB"); err != nil {
		return StorageConfig{}, err
	} else if override != nil {
		maxGB = *override
	}

	var maxBytes int64
	if maxGB > 0 {
		maxBytes = int64(maxGB) << 30
	}

	return StorageConfig{
		Root:         getEnvOrDefault("STORAGE_DIR", "data/sessions"),
		UsersFile:    getEnvOrDefault("USERS_FILE", "data/users.json"),
		MaxDiskBytes: maxBytes,
	}, nil
}

// VideoConfig 描述外部媒体处理引擎相关配置。
type VideoConfig struct {
	FFmpegPath string
	Timeout    time.Duration
}

func loadVideoConfig() (VideoConfig, error) {
	timeoutSeconds := 60 // 默认60秒
	if override, err := parseOptionalIntEnv("FFMPEG_TIMEOUT"); err != nil {
		return VideoConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return VideoConfig{}, fmt.Errorf("FFMPEG_TIMEOUT must be positive, got %d", *override)
		}
		timeoutSeconds = *override
	}

	return VideoConfig{
		FFmpegPath: getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		Timeout:    time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// PoseConfig 描述姿态推理后端配置。
type PoseConfig struct {
	Endpoint   string
	Confidence float64
}

// Enabled 表示是否配置了推理服务地址。
func (c PoseConfig) Enabled() bool {
	return c.Endpoint != ""
}

func loadPoseConfig() (PoseConfig, error) {
	confidence := 0.5
	if override, err := parseOptionalFloatEnv("POSE_CONFIDENCE"); err != nil {
		return PoseConfig{}, err
	} else if override != nil {
		if *override <= 0 || *override >= 1 {
			return PoseConfig{}, fmt.Errorf("POSE_CONFIDENCE must be in (0,1), got %v", *override)
		}
		confidence = *override
	}

	return PoseConfig{
		Endpoint:   strings.TrimSpace(os.Getenv("POSE_ENDPOINT")),
		Confidence: confidence,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
