// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"doc-theme-go/internal/config"
	"doc-theme-go/internal/extract"
	"doc-theme-go/internal/handler"
	"doc-theme-go/internal/index"
	"doc-theme-go/internal/middleware"
	"doc-theme-go/internal/model"
	"doc-theme-go/internal/rag"
	"doc-theme-go/internal/repository"
	"doc-theme-go/internal/service"
	"doc-theme-go/pkg/database"
	"doc-theme-go/pkg/embedding"
	"doc-theme-go/pkg/es"
	"doc-theme-go/pkg/kafka"
	"doc-theme-go/pkg/llm"
	"doc-theme-go/pkg/log"
	"doc-theme-go/pkg/ocr"
	"doc-theme-go/pkg/storage"
	"doc-theme-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、对象存储与消息队列
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err := database.DB.AutoMigrate(&model.DocumentMeta{}); err != nil {
		log.Fatalf("迁移 document_meta 表失败: %v", err)
	}
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	docRepo := repository.NewDocumentRepository(database.DB)
	historyRepo := repository.NewQueryHistoryRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	ocrAdapter := ocr.NewAdapter(cfg.OCR)
	extractor := extract.NewExtractor(ocrAdapter, tikaClient, cfg.OCR.RasterDPI)

	store := index.NewStore(es.ESClient, embeddingClient, docRepo, cfg.Elasticsearch.IndexName, cfg.Embedding.Model)
	ingestService := service.NewIngestService(extractor, store)

	docQA := rag.NewDocumentQA(store, llmClient)
	themeIdentifier := rag.NewThemeIdentifier(llmClient)
	synthesizer := rag.NewSynthesizer(llmClient)
	queryService := service.NewQueryService(store, docQA, themeIdentifier, synthesizer, historyRepo)

	// 6. 启动后台 Kafka 消费者处理重建索引任务
	go kafka.StartConsumer(cfg.Kafka, ingestService)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	documentHandler := handler.NewDocumentHandler(ingestService, store)
	queryHandler := handler.NewQueryHandler(queryService)

	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			documents.POST("/upload", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.POST("/:docId/reindex", documentHandler.Reindex)
		}

		apiV1.POST("/query", queryHandler.Query)
		apiV1.GET("/query/stream", queryHandler.QueryStream)
		apiV1.GET("/search", queryHandler.Search)
		apiV1.GET("/queries/recent", queryHandler.RecentQueries)
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
