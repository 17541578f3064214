package milvus

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"pdf_rag/backend/go/internal/config"
	"pdf_rag/backend/go/pkg/logger"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 集合中的字段名。
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldSource     = "source"
	FieldFileName   = "file_name"
	FieldSourceID   = "source_id"
	FieldChunkIndex = "chunk_index"
	FieldEmbedding  = "embedding"
)

// MaxTextLength 是 text 字段的最大字节数。
const MaxTextLength = 65535

// 其余 VarChar 字段的最大长度。
const (
	maxIDLength     = 64
	maxSourceLength = 2048
	maxNameLength   = 512
)

// OutputFields 是检索时需要返回的标量字段。
var OutputFields = []string{FieldText, FieldSource, FieldFileName, FieldSourceID, FieldChunkIndex}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeName 把任意字符串转换为合法的 Milvus 集合名或分区名。
// 只保留字母、数字和下划线, 不能以数字开头。
func SanitizeName(name string) string {
	s := invalidNameChars.ReplaceAllString(name, "_")
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	return s
}

// MilvusClient 包含了 Milvus 客户端实例和集合相关配置。
type MilvusClient struct {
	Client     client.Client // Milvus 客户端实例。
	Collection string        // 已清洗的集合名。
	Dimension  int
	Metric     entity.MetricType
	IndexType  string
	log        *logger.Logger
}

// Connect 根据向量存储配置创建一个 Milvus 客户端。
func Connect(ctx context.Context, cfg config.VectorStoreConfig, log *logger.Logger) (*MilvusClient, error) {
	if log == nil {
		log = logger.New("milvus")
	}
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Milvus.Address,
		APIKey:  cfg.Milvus.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到 Milvus: %w", err)
	}
	log.Info(fmt.Sprintf("connected to milvus at %s", cfg.Milvus.Address))

	return &MilvusClient{
		Client:     c,
		Collection: SanitizeName(cfg.CollectionName),
		Dimension:  cfg.Dimension,
		Metric:     entity.MetricType(cfg.Metric),
		IndexType:  cfg.Milvus.IndexType,
		log:        log,
	}, nil
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// HealthCheck 检查 Milvus 连接的健康状况。
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// Schema 返回集合的 Schema。
func (c *MilvusClient) Schema() *entity.Schema {
	return entity.NewSchema().
		WithName(c.Collection).
		WithDescription("pdf chunks").
		WithField(entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName(FieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(MaxTextLength)).
		WithField(entity.NewField().WithName(FieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxSourceLength)).
		WithField(entity.NewField().WithName(FieldFileName).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxNameLength)).
		WithField(entity.NewField().WithName(FieldSourceID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxIDLength)).
		WithField(entity.NewField().WithName(FieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Dimension)))
}

// EnsureCollection 确保集合存在、已建索引并已加载。
// 已存在的集合向量维度必须与配置一致。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	exists, err := c.Client.HasCollection(ctx, c.Collection)
	if err != nil {
		return fmt.Errorf("检查集合是否存在时出错: %w", err)
	}

	if exists {
		dim, err := c.describeDimension(ctx)
		if err != nil {
			return err
		}
		if dim != c.Dimension {
			return &DimensionMismatchError{Collection: c.Collection, Existing: dim, Configured: c.Dimension}
		}
	} else {
		if err := c.Client.CreateCollection(ctx, c.Schema(), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}
		idx, err := BuildIndex(c.IndexType, c.Metric)
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, c.Collection, FieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("为字段 '%s' 创建索引失败: %w", FieldEmbedding, err)
		}
		c.log.Info(fmt.Sprintf("created collection %s (dim=%d, metric=%s, index=%s)", c.Collection, c.Dimension, c.Metric, c.IndexType))
	}

	if err := c.Client.LoadCollection(ctx, c.Collection, false); err != nil {
		return fmt.Errorf("加载 Milvus 集合 '%s' 失败: %w", c.Collection, err)
	}
	return nil
}

func (c *MilvusClient) describeDimension(ctx context.Context) (int, error) {
	coll, err := c.Client.DescribeCollection(ctx, c.Collection)
	if err != nil {
		return 0, fmt.Errorf("获取集合 '%s' 信息失败: %w", c.Collection, err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != FieldEmbedding {
			continue
		}
		dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		if err != nil {
			return 0, fmt.Errorf("集合 '%s' 的向量维度无效: %w", c.Collection, err)
		}
		return dim, nil
	}
	return 0, fmt.Errorf("集合 '%s' 缺少向量字段 '%s'", c.Collection, FieldEmbedding)
}

// EnsurePartition 确保分区存在并返回清洗后的分区名。
func (c *MilvusClient) EnsurePartition(ctx context.Context, name string) (string, error) {
	partition := SanitizeName(name)
	ok, err := c.Client.HasPartition(ctx, c.Collection, partition)
	if err != nil {
		return "", fmt.Errorf("无法检查集合 '%s' 的分区 '%s': %w", c.Collection, partition, err)
	}
	if ok {
		return partition, nil
	}
	if err := c.Client.CreatePartition(ctx, c.Collection, partition); err != nil {
		return "", fmt.Errorf("为集合 '%s' 创建分区 '%s' 失败: %w", c.Collection, partition, err)
	}
	c.log.Info(fmt.Sprintf("created partition %s in %s", partition, c.Collection))
	return partition, nil
}

// Flush 手动触发一次刷新操作，使刚写入的数据立即可见。
func (c *MilvusClient) Flush(ctx context.Context) error {
	if err := c.Client.Flush(ctx, c.Collection, false); err != nil {
		return fmt.Errorf("刷新集合 '%s' 失败: %w", c.Collection, err)
	}
	return nil
}

// DimensionMismatchError 表示已存在的集合与配置的向量维度不一致。
type DimensionMismatchError struct {
	Collection string
	Existing   int
	Configured int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection %s has dimension %d, configured %d", e.Collection, e.Existing, e.Configured)
}

// BuildIndex 根据索引类型和度量类型构建索引实体。
func BuildIndex(indexType string, metric entity.MetricType) (entity.Index, error) {
	switch indexType {
	case "IVF_FLAT":
		return entity.NewIndexIvfFlat(metric, 128)
	case "HNSW":
		return entity.NewIndexHNSW(metric, 8, 96)
	case "IVF_SQ8":
		return entity.NewIndexIvfSQ8(metric, 128)
	case "AUTOINDEX", "":
		return entity.NewIndexAUTOINDEX(metric)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexType)
	}
}

// SearchParam 返回与索引类型匹配的检索参数。
func SearchParam(indexType string) (entity.SearchParam, error) {
	switch indexType {
	case "IVF_FLAT", "IVF_SQ8":
		return entity.NewIndexIvfFlatSearchParam(10)
	case "HNSW":
		return entity.NewIndexHNSWSearchParam(64)
	case "AUTOINDEX", "":
		return entity.NewIndexAUTOINDEXSearchParam(1)
	default:
		return nil, fmt.Errorf("不支持的索引类型: %s", indexType)
	}
}
