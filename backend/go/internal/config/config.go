package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// HTTPConfig 定义了 API 服务的监听配置。
type HTTPConfig struct {
	Address        string `yaml:"address"`        // 监听地址 (例如: ":8000")
	RequestTimeout string `yaml:"requestTimeout"` // 单个请求的超时时间, 为空或 "0" 表示不限制
	MaxUploadMB    int64  `yaml:"maxUploadMB"`    // 上传请求体的最大大小 (MB), 超出返回 413
}

// StorageConfig 定义了 S3 兼容对象存储的连接配置。
type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`      // 服务端点, 默认 "s3.amazonaws.com"
	Region        string `yaml:"region"`        // 区域 (例如: "us-east-1")
	Bucket        string `yaml:"bucket"`        // 存储桶名称
	AccessKey     string `yaml:"accessKey"`     // 访问密钥
	SecretKey     string `yaml:"secretKey"`     // Secret 密钥
	Secure        *bool  `yaml:"secure"`        // 是否使用HTTPS, 未设置时 AWS 端点默认开启
	Prefix        string `yaml:"prefix"`        // 对象键前缀, 默认 "uploads"
	PublicBaseURL string `yaml:"publicBaseURL"` // 可选, 覆盖对象公开访问地址的前缀
	ScratchDir    string `yaml:"scratchDir"`    // 下载文件的本地目录, 默认 "s3"
}

// UseHTTPS 报告是否通过 HTTPS 访问端点。
func (c StorageConfig) UseHTTPS() bool {
	return c.Secure != nil && *c.Secure
}

// IsAWSEndpoint 报告端点是否属于 AWS S3 (s3.amazonaws.com 或任意 *.amazonaws.com)。
func IsAWSEndpoint(endpoint string) bool {
	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	host = strings.TrimSuffix(host, "/")
	return host == "amazonaws.com" || strings.HasSuffix(host, ".amazonaws.com")
}

// Validate 检查访问对象存储所必需的配置项。
func (c StorageConfig) Validate() error {
	var missing []string
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if c.AccessKey == "" {
		missing = append(missing, "accessKey")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secretKey")
	}
	if len(missing) > 0 {
		return fmt.Errorf("storage: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// MilvusConfig 定义了 Milvus 数据库的连接配置。
type MilvusConfig struct {
	Address   string `yaml:"address"`   // Milvus 服务地址
	APIKey    string `yaml:"apiKey"`    // Zilliz Cloud / Milvus 访问令牌 (可选)
	IndexType string `yaml:"indexType"` // 索引类型 (例如: "AUTOINDEX", "HNSW", "IVF_FLAT")
}

// ChromaConfig 定义了 Chroma 数据库的连接配置。
type ChromaConfig struct {
	URL string `yaml:"url"` // Chroma 服务地址 (例如: "http://localhost:8000")
}

// VectorStoreConfig 定义了向量集合及其后端。
// 集合由 (CollectionName, Namespace) 唯一标识, 集合内所有向量维度相同。
type VectorStoreConfig struct {
	Provider       string       `yaml:"provider"`       // "milvus", "chroma" 或 "memory"
	CollectionName string       `yaml:"collectionName"` // 集合名称
	Namespace      string       `yaml:"namespace"`      // 命名空间 (Milvus 中对应分区)
	Dimension      int          `yaml:"dimension"`      // 向量维度
	TopK           int          `yaml:"topK"`           // 检索返回的最大条数
	Metric         string       `yaml:"metric"`         // 相似度度量类型 ("COSINE", "L2", "IP")
	Milvus         MilvusConfig `yaml:"milvus"`         // Milvus 连接配置
	Chroma         ChromaConfig `yaml:"chroma"`         // Chroma 连接配置
}

// Validate 检查向量集合配置是否完整。
func (c VectorStoreConfig) Validate() error {
	if c.CollectionName == "" {
		return errors.New("vectorStore: missing collectionName")
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("vectorStore: invalid dimension %d", c.Dimension)
	}
	switch c.Provider {
	case "milvus":
		if c.Milvus.Address == "" {
			return errors.New("vectorStore.milvus: missing address")
		}
	case "chroma":
		if c.Chroma.URL == "" {
			return errors.New("vectorStore.chroma: missing url")
		}
	case "memory":
	default:
		return fmt.Errorf("vectorStore: unsupported provider %q", c.Provider)
	}
	return nil
}

// EmbeddingConfig 定义了嵌入模型。入库与查询必须使用同一个模型。
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`  // "huggingface", "gemini", "ollama", "openai"
	Model     string `yaml:"model"`     // 模型名称
	APIKey    string `yaml:"apiKey"`    // API 密钥
	BaseURL   string `yaml:"baseURL"`   // 服务基础 URL (可选)
	BatchSize int    `yaml:"batchSize"` // 单次请求最多发送的文本数, 默认 32
}

// LLMConfig 定义了托管生成模型。
type LLMConfig struct {
	Provider     string `yaml:"provider"`     // "huggingface", "gemini", "ollama", "openai"
	Model        string `yaml:"model"`        // 模型名称
	APIType      string `yaml:"apiType"`      // 调用方式 (例如: "serverless_inference_api", "inference_endpoints")
	APIKey       string `yaml:"apiKey"`       // API 密钥
	BaseURL      string `yaml:"baseURL"`      // 服务基础 URL (可选)
	MaxNewTokens int    `yaml:"maxNewTokens"` // 生成的最大 token 数
}

// needsAPIKey 报告该提供商是否需要 API 密钥。
func needsAPIKey(provider string) bool {
	return provider != "ollama"
}

// Validate 检查嵌入模型配置是否完整。
func (c EmbeddingConfig) Validate() error {
	if c.Model == "" {
		return errors.New("embedding: missing model")
	}
	if needsAPIKey(c.Provider) && c.APIKey == "" {
		return fmt.Errorf("embedding: missing apiKey for provider %q", c.Provider)
	}
	return nil
}

// Validate 检查生成模型配置是否完整。
func (c LLMConfig) Validate() error {
	if c.Model == "" {
		return errors.New("llm: missing model")
	}
	if needsAPIKey(c.Provider) && c.APIKey == "" {
		return fmt.Errorf("llm: missing apiKey for provider %q", c.Provider)
	}
	return nil
}

// IngestionConfig 定义了文档切分策略。
type IngestionConfig struct {
	SentencesPerChunk int `yaml:"sentencesPerChunk"` // 每个分块包含的句子数
}

// CircuitBreakerConfig 定义了调用托管服务时使用的熔断器配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App            AppInfo              `yaml:"app"`
	Logger         LoggerConfig         `yaml:"logger"`
	HTTP           HTTPConfig           `yaml:"http"`
	Storage        StorageConfig        `yaml:"storage"`
	VectorStore    VectorStoreConfig    `yaml:"vectorStore"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	LLM            LLMConfig            `yaml:"llm"`
	Ingestion      IngestionConfig      `yaml:"ingestion"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// Default 返回一份只包含默认值的配置。
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 文件不存在时使用默认配置；随后加载 .env 文件并用环境变量覆盖。
// 凭证缺失不会在这里报错，而是在第一次使用时由各组件的 Validate 报告。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取或解析失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	yamlFile, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}

	// .env 是可选的。
	_ = godotenv.Load()

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv 使用环境变量覆盖配置项，仅当变量非空时生效。
func applyEnv(cfg *AppConfig, getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.HTTP.Address, "RAG_HTTP_ADDR")
	set(&cfg.Logger.Level, "LOG_LEVEL")
	set(&cfg.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	set(&cfg.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")
	set(&cfg.Storage.Region, "AWS_REGION")
	set(&cfg.Storage.Bucket, "S3_BUCKET")
	set(&cfg.Storage.Endpoint, "S3_ENDPOINT")
	set(&cfg.VectorStore.Milvus.Address, "MILVUS_ADDRESS")
	set(&cfg.VectorStore.Milvus.APIKey, "MILVUS_API_KEY")
	set(&cfg.VectorStore.Chroma.URL, "CHROMA_URL")

	keyFor := func(provider string) []string {
		switch provider {
		case "gemini":
			return []string{"GEMINI_API_KEY"}
		case "openai":
			return []string{"OPENAI_API_KEY"}
		case "ollama":
			return nil
		default:
			return []string{"HF_TOKEN", "HF_API_TOKEN"}
		}
	}
	set(&cfg.Embedding.APIKey, keyFor(cfg.Embedding.Provider)...)
	set(&cfg.LLM.APIKey, keyFor(cfg.LLM.Provider)...)
	if cfg.Embedding.Provider == "ollama" {
		set(&cfg.Embedding.BaseURL, "OLLAMA_HOST")
	}
	if cfg.LLM.Provider == "ollama" {
		set(&cfg.LLM.BaseURL, "OLLAMA_HOST")
	}
}

// applyDefaults 为未设置的配置项填充默认值。
func applyDefaults(cfg *AppConfig) {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	def(&cfg.App.Name, "pdf-rag")
	def(&cfg.Logger.Level, "info")
	def(&cfg.HTTP.Address, ":8000")
	if cfg.HTTP.MaxUploadMB <= 0 {
		cfg.HTTP.MaxUploadMB = 32
	}

	def(&cfg.Storage.Endpoint, "s3.amazonaws.com")
	def(&cfg.Storage.Bucket, "haystack-docs")
	def(&cfg.Storage.Prefix, "uploads")
	def(&cfg.Storage.ScratchDir, "s3")
	if cfg.Storage.Secure == nil {
		secure := IsAWSEndpoint(cfg.Storage.Endpoint)
		cfg.Storage.Secure = &secure
	}

	def(&cfg.VectorStore.Provider, "milvus")
	def(&cfg.VectorStore.CollectionName, "haystack")
	def(&cfg.VectorStore.Namespace, "default")
	def(&cfg.VectorStore.Metric, "COSINE")
	def(&cfg.VectorStore.Milvus.IndexType, "AUTOINDEX")
	if cfg.VectorStore.Dimension <= 0 {
		cfg.VectorStore.Dimension = 768
	}
	if cfg.VectorStore.TopK <= 0 {
		cfg.VectorStore.TopK = 10
	}

	def(&cfg.Embedding.Provider, "huggingface")
	def(&cfg.Embedding.Model, "sentence-transformers/all-mpnet-base-v2")
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 32
	}

	def(&cfg.LLM.Provider, "huggingface")
	def(&cfg.LLM.Model, "meta-llama/Llama-3.2-3B-Instruct")
	def(&cfg.LLM.APIType, "serverless_inference_api")
	if cfg.LLM.MaxNewTokens <= 0 {
		cfg.LLM.MaxNewTokens = 512
	}

	if cfg.Ingestion.SentencesPerChunk <= 0 {
		cfg.Ingestion.SentencesPerChunk = 2
	}

	if cfg.CircuitBreaker.FailureThreshold == 0 {
		cfg.CircuitBreaker.FailureThreshold = 5
	}
	if cfg.CircuitBreaker.SuccessThreshold == 0 {
		cfg.CircuitBreaker.SuccessThreshold = 1
	}
	def(&cfg.CircuitBreaker.Timeout, "30s")
}
