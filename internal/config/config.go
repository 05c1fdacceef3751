package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	MinTemperature = 0.0
	MaxTemperature = 1.5
	MinMaxTokens   = 512
	MaxMaxTokens   = 4096
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Reveal     RevealConfig
	Document   DocumentConfig
	Log        LogConfig
	Credential CredentialConfig
}

// Load 从环境变量加载配置。调用方应先用 godotenv 加载 .env。
func Load() (*Config, error) {
	v := newViper()

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(v)
	if err != nil {
		return nil, err
	}

	reveal, err := loadRevealConfig(v)
	if err != nil {
		return nil, err
	}

	doc, err := loadDocumentConfig(v)
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Reveal:     reveal,
		Document:   doc,
		Log:        logCfg,
		Credential: CredentialConfig{SSMParameter: strings.TrimSpace(v.GetString("CREDENTIAL_SSM_PARAMETER"))},
	}, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	v.SetDefault("LLM_TEMPERATURE", "0.7")
	v.SetDefault("LLM_MAX_TOKENS", "1024")
	v.SetDefault("LLM_TIMEOUT", "60s")
	v.SetDefault("LLM_REGION", "cn-beijing")
	v.SetDefault("REVEAL_CHUNK_SIZE", "4")
	v.SetDefault("REVEAL_DELAY", "20ms")
	v.SetDefault("DOCUMENT_MAX_BYTES", strconv.Itoa(10<<20))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", "false")
	return v
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置，其中生成参数作为会话默认值。
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Region      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// HasCredential 表示服务端是否配置了默认 API Key。
func (c AIConfig) HasCredential() bool {
	return c.APIKey != ""
}

func loadAIConfig(v *viper.Viper) (AIConfig, error) {
	provider := strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER")))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q: want %q or %q", provider, ProviderOpenAI, ProviderArk)
	}

	temperature, err := parseFloat(v, "LLM_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		return AIConfig{}, fmt.Errorf("LLM_TEMPERATURE %.2f out of range [%.1f, %.1f]", temperature, MinTemperature, MaxTemperature)
	}

	maxTokens, err := parseInt(v, "LLM_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens < MinMaxTokens || maxTokens > MaxMaxTokens {
		return AIConfig{}, fmt.Errorf("LLM_MAX_TOKENS %d out of range [%d, %d]", maxTokens, MinMaxTokens, MaxMaxTokens)
	}

	timeout, err := parseDuration(v, "LLM_TIMEOUT")
	if err != nil {
		return AIConfig{}, err
	}
	if timeout <= 0 {
		return AIConfig{}, fmt.Errorf("LLM_TIMEOUT must be positive, got %s", timeout)
	}

	apiKey := firstNonEmpty(v, "LLM_API_KEY", "OPENAI_API_KEY")
	baseURL := "https://api.openai.com/v1"
	model := "gpt-3.5-turbo"
	if provider == ProviderArk {
		apiKey = firstNonEmpty(v, "LLM_API_KEY", "ARK_API_KEY")
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
		model = ""
	}

	cfg := AIConfig{
		Provider:    provider,
		APIKey:      apiKey,
		BaseURL:     getOrDefault(v, "LLM_BASE_URL", baseURL),
		Model:       getOrDefault(v, "LLM_MODEL", model),
		Region:      strings.TrimSpace(v.GetString("LLM_REGION")),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}
	if cfg.Model == "" {
		return AIConfig{}, fmt.Errorf("LLM_MODEL is required for provider %q", provider)
	}
	return cfg, nil
}

// RevealConfig 控制回复“打字机”展示的节奏，只影响展示，不影响内容。
type RevealConfig struct {
	ChunkSize int
	Delay     time.Duration
}

func loadRevealConfig(v *viper.Viper) (RevealConfig, error) {
	size, err := parseInt(v, "REVEAL_CHUNK_SIZE")
	if err != nil {
		return RevealConfig{}, err
	}
	if size < 1 {
		size = 1
	}

	delay, err := parseDuration(v, "REVEAL_DELAY")
	if err != nil {
		return RevealConfig{}, err
	}
	if delay < 0 {
		delay = 0
	}
	return RevealConfig{ChunkSize: size, Delay: delay}, nil
}

// DocumentConfig 描述文档上传限制。
type DocumentConfig struct {
	MaxBytes int64
}

func loadDocumentConfig(v *viper.Viper) (DocumentConfig, error) {
	maxBytes, err := parseInt(v, "DOCUMENT_MAX_BYTES")
	if err != nil {
		return DocumentConfig{}, err
	}
	if maxBytes <= 0 {
		return DocumentConfig{}, fmt.Errorf("DOCUMENT_MAX_BYTES must be positive, got %d", maxBytes)
	}
	return DocumentConfig{MaxBytes: int64(maxBytes)}, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig(v *viper.Viper) (LogConfig, error) {
	pretty, err := parseBool(v, "LOG_PRETTY")
	if err != nil {
		return LogConfig{}, err
	}
	return LogConfig{
		Level:  strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		Pretty: pretty,
	}, nil
}

// CredentialConfig 描述可选的 API Key 外部来源。
type CredentialConfig struct {
	// SSMParameter 非空时，启动阶段从 AWS SSM Parameter Store 读取 API Key。
	SSMParameter string
}

func getOrDefault(v *viper.Viper, key, defaultValue string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(v *viper.Viper, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(v.GetString(key)); value != "" {
			return value
		}
	}
	return ""
}

func parseBool(v *viper.Viper, key string) (bool, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloat(v *viper.Viper, key string) (float64, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
