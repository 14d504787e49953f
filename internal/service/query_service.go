package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doc-theme-go/internal/config"
	"doc-theme-go/internal/index"
	"doc-theme-go/internal/model"
	"doc-theme-go/internal/rag"
	"doc-theme-go/internal/repository"
	"doc-theme-go/pkg/log"
)

// ProgressFunc 在查询管线进入各阶段时被回调，用于向客户端推送进度。
type ProgressFunc func(stage, message string)

// QueryService 接口定义了查询管线相关的业务操作。
type QueryService interface {
	// Query 执行完整的三阶段查询管线。
	// 唯一的硬错误路径是文档清单不可读；模型故障均降级进结果体。
	Query(ctx context.Context, query string, docIDs []string) (*model.QueryResult, error)
	// QueryWithProgress 同 Query，但在每个阶段回调 progress。
	QueryWithProgress(ctx context.Context, query string, docIDs []string, progress ProgressFunc) (*model.QueryResult, error)
	// RecentQueries 返回最近的查询历史。
	RecentQueries(ctx context.Context, limit int) ([]model.QueryHistoryEntry, error)
	// Search 直接对索引做分块级检索。
	Search(ctx context.Context, text string, docIDs []string, limit int) []model.ChunkMatch
}

// queryService 是 QueryService 接口的实现。
type queryService struct {
	store       index.Store
	docQA       *rag.DocumentQA
	themes      *rag.ThemeIdentifier
	synthesizer *rag.Synthesizer
	historyRepo repository.QueryHistoryRepository
}

// NewQueryService 创建一个新的 QueryService 实例。
func NewQueryService(store index.Store, docQA *rag.DocumentQA, themes *rag.ThemeIdentifier, synthesizer *rag.Synthesizer, historyRepo repository.QueryHistoryRepository) QueryService {
	return &queryService{
		store:       store,
		docQA:       docQA,
		themes:      themes,
		synthesizer: synthesizer,
		historyRepo: historyRepo,
	}
}

func (s *queryService) Query(ctx context.Context, query string, docIDs []string) (*model.QueryResult, error) {
	return s.QueryWithProgress(ctx, query, docIDs, nil)
}

func (s *queryService) QueryWithProgress(ctx context.Context, query string, docIDs []string, progress ProgressFunc) (*model.QueryResult, error) {
	notify := func(stage, message string) {
		if progress != nil {
			progress(stage, message)
		}
	}

	candidates := docIDs
	if len(candidates) == 0 {
		metas, err := s.store.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		candidates = make([]string, 0, len(metas))
		for _, meta := range metas {
			candidates = append(candidates, meta.DocID)
		}
	}

	notify("documents", "Analyzing documents")
	answers := s.answerDocuments(ctx, query, candidates, notify)

	notify("themes", "Identifying themes")
	themes := s.themes.Identify(ctx, answers)

	notify("synthesis", "Synthesizing final response")
	synthesized := s.synthesizer.Synthesize(ctx, query, themes, answers)

	result := &model.QueryResult{
		DocumentResponses:   answers,
		Themes:              themes,
		SynthesizedResponse: *synthesized,
	}

	s.recordHistory(ctx, query, result)
	return result, nil
}

// answerDocuments 用有界并发逐文档问答，输出顺序与输入文档顺序一致。
// 找不到的文档被跳过，不在结果中占位。
func (s *queryService) answerDocuments(ctx context.Context, query string, docIDs []string, notify ProgressFunc) []model.DocumentAnswer {
	slots := make([]*model.DocumentAnswer, len(docIDs))
	sem := make(chan struct{}, config.Conf.Query.Workers)
	var wg sync.WaitGroup

	for i, docID := range docIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, docID string) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[i] = s.docQA.Answer(ctx, query, docID)
			if slots[i] != nil {
				notify("document", fmt.Sprintf("Analyzed %s", slots[i].FileName))
			}
		}(i, docID)
	}
	wg.Wait()

	answers := make([]model.DocumentAnswer, 0, len(docIDs))
	for i, answer := range slots {
		if answer == nil {
			log.Warnf("[Query] 文档 %s 无法回答, 已从结果中省略", docIDs[i])
			continue
		}
		answers = append(answers, *answer)
	}
	return answers
}

// recordHistory 把本次查询概要写入历史，失败只记日志。
func (s *queryService) recordHistory(ctx context.Context, query string, result *model.QueryResult) {
	summary := result.SynthesizedResponse.SynthesizedResponse
	if runes := []rune(summary); len(runes) > 200 {
		summary = string(runes[:200]) + "..."
	}

	entry := model.QueryHistoryEntry{
		Query:         query,
		DocumentCount: len(result.DocumentResponses),
		ThemeCount:    len(result.Themes),
		Summary:       summary,
		Timestamp:     time.Now().Unix(),
	}
	if err := s.historyRepo.Push(ctx, entry, config.Conf.Query.History); err != nil {
		log.Warnf("[Query] 写入查询历史失败: %v", err)
	}
}

func (s *queryService) RecentQueries(ctx context.Context, limit int) ([]model.QueryHistoryEntry, error) {
	return s.historyRepo.Recent(ctx, limit)
}

func (s *queryService) Search(ctx context.Context, text string, docIDs []string, limit int) []model.ChunkMatch {
	if limit <= 0 {
		limit = config.Conf.Query.TopK
	}
	return s.store.Query(ctx, text, docIDs, limit)
}
