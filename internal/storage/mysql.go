package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"candidate-engine-go/internal/config"
	"candidate-engine-go/internal/storage/models"
	"candidate-engine-go/internal/tracing"
	"candidate-engine-go/internal/types"
)

var mysqlTracer = otel.Tracer("candidate-engine-go/storage/mysql")

// GormTracingPlugin GORM插件，为数据库操作打OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	return nil
}

type gormSpanKey struct{}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)

		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
		)

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 未命中记录属于正常业务路径
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: mysqlTracer,
		dbName: dbName,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	default:
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构，迁移期间关闭SQL日志
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := gormlogger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	if err := silentDB.AutoMigrate(
		&models.Candidate{},
		&models.Resume{},
		&models.CandidateMessage{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// FindOrCreateCandidate 按邮箱或电话查找候选人，找不到则创建
func (m *MySQL) FindOrCreateCandidate(ctx context.Context, name, email, phone string) (*models.Candidate, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.FindOrCreateCandidate", trace.WithAttributes(
		attribute.String("candidate.email", tracing.MaskPII(email)),
		attribute.String("candidate.phone", tracing.MaskPII(phone)),
	))
	defer span.End()

	if email == "" && phone == "" {
		err := fmt.Errorf("邮箱和电话至少需要一个")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	var candidate models.Candidate
	query := m.db.WithContext(ctx).Model(&models.Candidate{})
	switch {
	case email != "" && phone != "":
		query = query.Where("primary_email = ?", email).Or("primary_phone = ?", phone)
	case email != "":
		query = query.Where("primary_email = ?", email)
	default:
		query = query.Where("primary_phone = ?", phone)
	}

	err := query.First(&candidate).Error
	if err == nil {
		span.SetAttributes(attribute.Bool("candidate.found", true),
			attribute.String("candidate.id", candidate.CandidateID))
		return &candidate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}

	span.SetAttributes(attribute.Bool("candidate.found", false))
	newCandidate := &models.Candidate{
		CandidateID:  uuid.NewString(),
		PrimaryName:  name,
		PrimaryEmail: email,
		PrimaryPhone: phone,
	}
	if err := m.db.WithContext(ctx).Create(newCandidate).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("创建新候选人失败: %w", err)
	}

	span.SetAttributes(attribute.String("candidate.id", newCandidate.CandidateID))
	return newCandidate, nil
}

// GetCandidateByID 通过ID获取候选人，不存在时返回nil
func (m *MySQL) GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).First(&candidate, "candidate_id = ?", candidateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	return &candidate, nil
}

// SaveCandidateProfile 将调和后的字段档案与总体置信度写入候选人记录
func (m *MySQL) SaveCandidateProfile(ctx context.Context, candidateID string, profile types.CandidateFieldProfile, overallConfidence float64) error {
	profileJSON, err := models.ToJSON(profile)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"field_profile_json": profileJSON,
		"overall_confidence": overallConfidence,
	}
	// 邮箱电话等主字段同步到候选人主列，便于按列查询
	if state, ok := profile[types.FieldName]; ok && state.Answered {
		updates["primary_name"] = state.Value
	}
	if state, ok := profile[types.FieldLocation]; ok && state.Answered {
		updates["current_location"] = state.Value
	}

	return m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Updates(updates).Error
}

// GetCandidateProfile 从候选人记录读出字段档案，无记录或无档案时返回nil
func (m *MySQL) GetCandidateProfile(ctx context.Context, candidateID string) (types.CandidateFieldProfile, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).Select("field_profile_json").
		First(&candidate, "candidate_id = ?", candidateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询候选人档案失败: %w", err)
	}

	var profile types.CandidateFieldProfile
	if err := models.FromJSON(candidate.FieldProfileJSON, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// SetCandidateReviewFlag 标记候选人是否需要人工复核
func (m *MySQL) SetCandidateReviewFlag(ctx context.Context, candidateID string, requiresReview bool) error {
	return m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Update("requires_review", requiresReview).Error
}

// CreateResume 创建简历处理记录
func (m *MySQL) CreateResume(ctx context.Context, resume *models.Resume) error {
	return m.db.WithContext(ctx).Create(resume).Error
}

// GetResumeByID 通过ID获取简历记录，不存在时返回nil
func (m *MySQL) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	err := m.db.WithContext(ctx).First(&resume, "resume_id = ?", resumeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询简历记录失败: %w", err)
	}
	return &resume, nil
}

// UpdateResumeProgress 更新简历处理状态与进度
func (m *MySQL) UpdateResumeProgress(ctx context.Context, resumeID string, status string, progress int) error {
	return m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(map[string]interface{}{
			"processing_status": status,
			"progress":          progress,
		}).Error
}

// FailResume 将简历标记为处理失败并记录原因
func (m *MySQL) FailResume(ctx context.Context, resumeID string, reason string) error {
	return m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(map[string]interface{}{
			"processing_status": models.ResumeStatusFailed,
			"processing_error":  reason,
		}).Error
}

// UpdateResumeFields 更新简历记录的多个字段
func (m *MySQL) UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(updates).Error
}

// RecordMessage 记录一条候选人沟通消息
func (m *MySQL) RecordMessage(ctx context.Context, message *models.CandidateMessage) error {
	return m.db.WithContext(ctx).Create(message).Error
}

// GetLastOutboundMessage 获取候选人最近一条外发消息
// 回复处理用它还原本轮追问过的字段，没有外发记录时返回nil
func (m *MySQL) GetLastOutboundMessage(ctx context.Context, candidateID string) (*models.CandidateMessage, error) {
	var message models.CandidateMessage
	err := m.db.WithContext(ctx).
		Where("candidate_id = ? AND direction = ?", candidateID, models.MessageDirectionOutbound).
		Order("sent_at DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询外发消息失败: %w", err)
	}
	return &message, nil
}
