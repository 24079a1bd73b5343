package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"
	"shop-assist-go/internal/model"
	"shop-assist-go/internal/repository"
	"shop-assist-go/pkg/embedding"
	"shop-assist-go/pkg/log"
)

// FAQService 定义了 FAQ 语义匹配的接口。
type FAQService interface {
	// Match 返回与 query 最相似的 FAQ 答案。相似度未过阈值时 ok 为 false。
	// 向量化服务不可用时返回包装了 embedding.ErrUnavailable 的错误，
	// 调用方应将其降级为未命中。
	Match(ctx context.Context, query string) (answer string, ok bool, err error)
	// Seed 幂等地导入 FAQ 条目，为缺失的问句计算向量。
	Seed(ctx context.Context, entries []model.FAQ) error
}

type faqService struct {
	faqRepo         repository.FAQRepository
	embeddingClient embedding.Client
	threshold       float64
}

// NewFAQService 创建一个新的 FAQService 实例。
func NewFAQService(faqRepo repository.FAQRepository, embeddingClient embedding.Client, threshold float64) FAQService {
	return &faqService{
		faqRepo:         faqRepo,
		embeddingClient: embeddingClient,
		threshold:       threshold,
	}
}

// Match 对 query 做向量化，与每条 FAQ 的预存向量做余弦相似度比较，
// 跟踪最大值；超过阈值返回对应答案。
// 并列打破规则：相似度相同（严格大于才更新最大值）时，先入库的条目获胜。
// 这是个任意但可观测的选择，依赖 FindAll 的 id 升序。
func (s *faqService) Match(ctx context.Context, query string) (string, bool, error) {
	queryVec, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return "", false, fmt.Errorf("faq match: %w", err)
	}

	faqs, err := s.faqRepo.FindAll()
	if err != nil {
		return "", false, fmt.Errorf("faq match: load faqs: %w", err)
	}

	var maxSim float64
	var bestAnswer string
	for _, faq := range faqs {
		vec, err := decodeEmbedding(faq.Embedding)
		if err != nil {
			log.Warnf("[FAQService] FAQ %d 的向量损坏，跳过: %v", faq.ID, err)
			continue
		}
		sim := cosineSimilarity(queryVec, vec)
		if sim > maxSim {
			maxSim = sim
			bestAnswer = faq.Answer
		}
	}

	if maxSim > s.threshold {
		return bestAnswer, true, nil
	}
	return "", false, nil
}

// Seed 导入 FAQ 条目：已存在的（问句+领域）跳过，新条目先计算问句向量再入库。
func (s *faqService) Seed(ctx context.Context, entries []model.FAQ) error {
	for _, entry := range entries {
		_, err := s.faqRepo.FindByQuestionAndDomain(entry.Question, entry.Domain)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("faq seed: lookup %q: %w", entry.Question, err)
		}

		vec, err := s.embeddingClient.CreateEmbedding(ctx, entry.Question)
		if err != nil {
			return fmt.Errorf("faq seed: embed %q: %w", entry.Question, err)
		}
		encoded, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("faq seed: encode embedding: %w", err)
		}
		entry.Embedding = string(encoded)
		if err := s.faqRepo.Create(&entry); err != nil {
			return fmt.Errorf("faq seed: create %q: %w", entry.Question, err)
		}
		log.Infof("[FAQService] 已导入 FAQ: %s (domain: %s)", entry.Question, entry.Domain)
	}
	return nil
}

// decodeEmbedding 反序列化存储的向量。
func decodeEmbedding(encoded string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// cosineSimilarity 计算两个向量的余弦相似度 dot(a,b)/(|a|·|b|)。
// 长度不一致或零向量返回 0。
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
