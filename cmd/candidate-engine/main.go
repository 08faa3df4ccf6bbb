package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"candidate-engine-go/internal/config"
	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/extractor"
	"candidate-engine-go/internal/fields"
	"candidate-engine-go/internal/logger"
	"candidate-engine-go/internal/processor"
	"candidate-engine-go/internal/reconcile"
	"candidate-engine-go/internal/reply"
	"candidate-engine-go/internal/storage"
	"candidate-engine-go/internal/tracing"
)

func main() {
	var configPath string
	var sampleConfigPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.StringVar(&sampleConfigPath, "create-config", "", "在指定路径生成示例配置文件后退出")
	pflag.Parse()

	if sampleConfigPath != "" {
		if err := config.CreateSampleConfig(sampleConfigPath); err != nil {
			logger.Logger.Fatal().Err(err).Msg("生成示例配置失败")
		}
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	log := logger.Component("main")
	log.Info().Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化链路追踪失败")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("关闭链路追踪失败")
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	if storageManager.MinIO == nil || storageManager.RabbitMQ == nil || storageManager.MySQL == nil {
		log.Fatal().Msg("MinIO、RabbitMQ和MySQL是处理流水线的必要依赖")
	}
	log.Info().Msg("存储服务初始化成功")

	profileStore, err := storage.NewCachedProfileStore(storageManager.MySQL, storageManager.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化候选人档案存储失败")
	}
	reconciler := reconcile.NewReconciler(profileStore)
	selector := reconcile.NewPendingFieldSelector(cfg.Selector.MaxPendingFields)

	textExtractor, err := buildTextExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化文本提取器失败")
	}
	log.Info().Msg("文本提取器初始化成功")

	fieldExtractor := fields.NewFieldExtractor(
		fields.WithChunking(cfg.Extractor.ChunkSize, cfg.Extractor.ChunkOverlap),
		fields.WithMaxSkills(cfg.Extractor.MaxSkills),
	)

	classifier := buildClassifier(cfg)

	// Redis缺席时不能把类型化的nil塞进接口，去重直接降级关闭
	var dedup processor.Deduplicator
	if storageManager.Redis != nil {
		dedup = storageManager.Redis
	}

	resumeProcessor, err := processor.NewResumeProcessor(processor.ResumeComponents{
		Fetcher:    storageManager.MinIO,
		Dedup:      dedup,
		Extractor:  textExtractor,
		Parser:     fieldExtractor,
		Reconciler: reconciler,
		Resumes:    storageManager.MySQL,
		Candidates: storageManager.MySQL,
		Events:     storageManager.RabbitMQ,
	},
		processor.WithEngineVersion(cfg.ActiveEngineVersion),
		processor.WithEventExchange(cfg.RabbitMQ.ResumeEventsExchange),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化简历处理器失败")
	}

	var replyOptions []processor.ReplyOption
	if storageManager.Redis != nil {
		replyOptions = append(replyOptions, processor.WithCandidateLocker(storageManager.Redis))
	}
	replyProcessor, err := processor.NewReplyProcessor(classifier, reconciler, selector, storageManager.MySQL, replyOptions...)
	if err != nil {
		log.Fatal().Err(err).Msg("初始化回复处理器失败")
	}

	stopChannels, err := startConsumers(cfg, storageManager.RabbitMQ, resumeProcessor, replyProcessor)
	if err != nil {
		log.Fatal().Err(err).Msg("启动消费者失败")
	}
	log.Info().Msg("所有消费者已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("接收到终止信号，正在优雅退出...")

	for _, stop := range stopChannels {
		close(stop)
	}
	log.Info().Msg("优雅退出完成")
}

// buildTextExtractor 按配置组装提取策略链
// PDF按 文本层 -> Tika -> OCR 的顺序兜底，图片仅在启用OCR时可处理
func buildTextExtractor(ctx context.Context, cfg *config.Config) (*extractor.TextExtractor, error) {
	var pdfStrategies []extractor.TextStrategy

	einoStrategy, err := extractor.NewEinoPDFStrategy(ctx)
	if err != nil {
		return nil, err
	}
	pdfStrategies = append(pdfStrategies, einoStrategy)

	if cfg.Tika.ServerURL != "" {
		var tikaOptions []extractor.TikaOption
		if cfg.Tika.Timeout > 0 {
			tikaOptions = append(tikaOptions, extractor.WithTikaTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		pdfStrategies = append(pdfStrategies, extractor.NewTikaPDFStrategy(cfg.Tika.ServerURL, tikaOptions...))
	}

	options := []extractor.Option{
		extractor.WithMinTextLength(cfg.Extractor.MinTextLength),
		extractor.WithDOCXStrategy(extractor.NewDOCXStrategy()),
	}

	if cfg.OCR.Enabled {
		ocrConfig := extractor.OCRConfig{
			Languages: cfg.OCR.Languages,
			RenderDPI: cfg.OCR.RenderDPI,
			MaxPages:  cfg.OCR.MaxPages,
			Timeout:   time.Duration(cfg.OCR.TimeoutSeconds) * time.Second,
		}
		pdfStrategies = append(pdfStrategies, extractor.NewPDFOCRStrategy(ocrConfig))
		options = append(options, extractor.WithImageStrategy(extractor.NewImageOCRStrategy(ocrConfig)))
	}
	options = append(options, extractor.WithPDFStrategies(pdfStrategies...))

	return extractor.NewTextExtractor(options...), nil
}

// buildClassifier 组装回复分类器
// 启用LLM时以LLM为主、关键词为兜底；未启用或聊天模型初始化失败则只用关键词
func buildClassifier(cfg *config.Config) reply.Classifier {
	log := logger.Component("main")
	keyword := reply.NewKeywordClassifier()
	if !cfg.LLM.Enabled {
		return keyword
	}

	chatModel, err := reply.NewOpenAIChatModel(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model,
		reply.WithChatTimeout(config.GetDuration(cfg.LLM.Timeout, 30*time.Second)),
		reply.WithChatTemperature(cfg.LLM.Temperature),
		reply.WithChatMaxTokens(cfg.LLM.MaxTokens),
	)
	if err != nil {
		log.Warn().Err(err).Str("model", cfg.LLM.Model).Msg("初始化聊天模型失败，回退到关键词分类器")
		return keyword
	}

	llm, err := reply.NewLLMClassifier(chatModel,
		reply.WithLLMTimeout(config.GetDuration(cfg.LLM.Timeout, 30*time.Second)),
	)
	if err != nil {
		log.Warn().Err(err).Msg("初始化LLM分类器失败，回退到关键词分类器")
		return keyword
	}
	log.Info().Str("model", cfg.LLM.Model).Msg("LLM分类器已启用，关键词分类器作为兜底")
	return reply.NewFallbackClassifier(llm, keyword)
}

// startConsumers 声明拓扑并启动两个消费者，返回各自的停止通道
func startConsumers(cfg *config.Config, mq *storage.RabbitMQ, resumeProcessor *processor.ResumeProcessor, replyProcessor *processor.ReplyProcessor) ([]chan<- struct{}, error) {
	exchange := cfg.RabbitMQ.ResumeEventsExchange
	if exchange == "" {
		exchange = constants.ResumeEventsExchange
	}
	uploadQueue := cfg.RabbitMQ.ResumeUploadQueue
	if uploadQueue == "" {
		uploadQueue = constants.ResumeUploadQueue
	}
	uploadKey := cfg.RabbitMQ.UploadedRoutingKey
	if uploadKey == "" {
		uploadKey = constants.ResumeUploadRoutingKey
	}
	replyQueue := cfg.RabbitMQ.CandidateReplyQueue
	if replyQueue == "" {
		replyQueue = constants.CandidateReplyQueue
	}
	replyKey := cfg.RabbitMQ.RepliedRoutingKey
	if replyKey == "" {
		replyKey = constants.CandidateReplyRoutingKey
	}

	if err := mq.EnsureExchange(exchange, "topic", true); err != nil {
		return nil, err
	}
	for _, binding := range []struct {
		queue      string
		routingKey string
	}{
		{uploadQueue, uploadKey},
		{replyQueue, replyKey},
	} {
		if err := mq.EnsureQueue(binding.queue, true); err != nil {
			return nil, err
		}
		if err := mq.BindQueue(binding.queue, exchange, binding.routingKey); err != nil {
			return nil, err
		}
	}

	prefetch := cfg.RabbitMQ.PrefetchCount
	if prefetch <= 0 {
		prefetch = 10
	}

	var stops []chan<- struct{}
	uploadStop, err := mq.StartConsumer(uploadQueue, prefetch, resumeProcessor.HandleMessage)
	if err != nil {
		return nil, err
	}
	stops = append(stops, uploadStop)

	replyStop, err := mq.StartConsumer(replyQueue, prefetch, replyProcessor.HandleMessage)
	if err != nil {
		return nil, err
	}
	stops = append(stops, replyStop)

	return stops, nil
}
