package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candidate-engine-go/internal/constants"
	"candidate-engine-go/internal/extractor"
	"candidate-engine-go/internal/reconcile"
	"candidate-engine-go/internal/reply"
	"candidate-engine-go/internal/storage/models"
	"candidate-engine-go/internal/types"
)

// ---- 测试替身 ----

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	return f.data, f.err
}

type fakeDedup struct {
	exists     bool
	existingID string
	removed    []string
}

func (f *fakeDedup) CheckAndSetFileMD5(ctx context.Context, md5Hex, resumeID string) (bool, string, error) {
	return f.exists, f.existingID, nil
}

func (f *fakeDedup) RemoveFileMD5(ctx context.Context, md5Hex string) error {
	f.removed = append(f.removed, md5Hex)
	return nil
}

type fakeExtractor struct {
	result *types.ExtractionResult
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (*types.ExtractionResult, error) {
	return f.result, f.err
}

type fakeParser struct {
	result *types.ParsedResume
	err    error
}

func (f *fakeParser) Extract(ctx context.Context, text string) (*types.ParsedResume, error) {
	return f.result, f.err
}

type fakeResumeRepo struct {
	existing   *models.Resume
	created    []*models.Resume
	statuses   []string
	progresses []int
	failReason string
	updates    []map[string]interface{}
}

func (f *fakeResumeRepo) CreateResume(ctx context.Context, resume *models.Resume) error {
	f.created = append(f.created, resume)
	return nil
}

func (f *fakeResumeRepo) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	return f.existing, nil
}

func (f *fakeResumeRepo) UpdateResumeProgress(ctx context.Context, resumeID, status string, progress int) error {
	f.statuses = append(f.statuses, status)
	f.progresses = append(f.progresses, progress)
	return nil
}

func (f *fakeResumeRepo) FailResume(ctx context.Context, resumeID, reason string) error {
	f.statuses = append(f.statuses, models.ResumeStatusFailed)
	f.failReason = reason
	return nil
}

func (f *fakeResumeRepo) UpdateResumeFields(ctx context.Context, resumeID string, updates map[string]interface{}) error {
	f.updates = append(f.updates, updates)
	return nil
}

type fakePublisher struct {
	events []ResumeProcessedEvent
}

func (f *fakePublisher) PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error {
	if event, ok := data.(ResumeProcessedEvent); ok {
		f.events = append(f.events, event)
	}
	return nil
}

type fakeCandidateRepo struct {
	candidate *models.Candidate
	gotName   string
	gotEmail  string
	gotPhone  string
}

func (f *fakeCandidateRepo) FindOrCreateCandidate(ctx context.Context, name, email, phone string) (*models.Candidate, error) {
	f.gotName, f.gotEmail, f.gotPhone = name, email, phone
	if f.candidate == nil {
		return nil, errors.New("邮箱和电话至少需要一个")
	}
	return f.candidate, nil
}

type fakeLocker struct {
	contended bool
	acquired  []string
	released  []string
}

func (f *fakeLocker) AcquireCandidateLock(ctx context.Context, candidateID string, expiration time.Duration) (string, error) {
	if f.contended {
		return "", nil
	}
	f.acquired = append(f.acquired, candidateID)
	return "lock-token", nil
}

func (f *fakeLocker) ReleaseCandidateLock(ctx context.Context, candidateID string, lockValue string) (bool, error) {
	f.released = append(f.released, candidateID)
	return true, nil
}

type fakeMessageRepo struct {
	recorded         []*models.CandidateMessage
	lastOutbound     *models.CandidateMessage
	missingCandidate bool
	reviewFlags      map[string]bool
}

func (f *fakeMessageRepo) GetCandidateByID(ctx context.Context, candidateID string) (*models.Candidate, error) {
	if f.missingCandidate {
		return nil, nil
	}
	return &models.Candidate{CandidateID: candidateID}, nil
}

func (f *fakeMessageRepo) RecordMessage(ctx context.Context, message *models.CandidateMessage) error {
	f.recorded = append(f.recorded, message)
	return nil
}

func (f *fakeMessageRepo) GetLastOutboundMessage(ctx context.Context, candidateID string) (*models.CandidateMessage, error) {
	return f.lastOutbound, nil
}

func (f *fakeMessageRepo) SetCandidateReviewFlag(ctx context.Context, candidateID string, requiresReview bool) error {
	if f.reviewFlags == nil {
		f.reviewFlags = make(map[string]bool)
	}
	f.reviewFlags[candidateID] = requiresReview
	return nil
}

func newResumeProcessorForTest(t *testing.T, fetcher *fakeFetcher, dedup *fakeDedup, ext *fakeExtractor, parser *fakeParser, repo *fakeResumeRepo, store reconcile.ProfileStore) *ResumeProcessor {
	t.Helper()
	p, err := NewResumeProcessor(ResumeComponents{
		Fetcher:    fetcher,
		Dedup:      dedup,
		Extractor:  ext,
		Parser:     parser,
		Reconciler: reconcile.NewReconciler(store),
		Resumes:    repo,
	})
	require.NoError(t, err, "构造简历处理器不应失败")
	return p
}

// ---- 简历流水线 ----

func TestResumeProcessorHappyPath(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	repo := &fakeResumeRepo{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("%PDF-1.4 fake")},
		&fakeDedup{},
		&fakeExtractor{result: &types.ExtractionResult{
			Text:     "Jane Doe\njane@example.com\nSoftware Engineer",
			Format:   types.FormatPDF,
			Strategy: "pdf_text_layer",
		}},
		&fakeParser{result: &types.ParsedResume{
			Fields: []types.ExtractedField{
				{Name: types.FieldName, Value: "Jane Doe", Confidence: 0.9, Source: types.SourceResume},
				{Name: types.FieldEmail, Value: "jane@example.com", Confidence: 0.95, Source: types.SourceResume},
			},
			Skills: []string{"Go", "Python"},
		}},
		repo, store)

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-1",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-1/original.pdf",
		SubmittedAt: time.Now(),
	})
	require.NoError(t, err, "正常流水线不应报错")

	// 进度里程碑：10（取件）-> 100（完成）
	assert.Contains(t, repo.progresses, constants.ProgressFetched, "应记录取件进度")
	assert.Contains(t, repo.progresses, constants.ProgressCompleted, "应记录完成进度")
	assert.Equal(t, models.ResumeStatusCompleted, repo.statuses[len(repo.statuses)-1], "终态应为COMPLETED")

	// 字段应调和进档案
	profile, err := store.GetProfile(context.Background(), "cand-1")
	require.NoError(t, err)
	require.Contains(t, profile, types.FieldEmail, "邮箱字段应进入档案")
	assert.Equal(t, "jane@example.com", profile[types.FieldEmail].Value)
	assert.True(t, profile[types.FieldEmail].Answered, "高置信度字段应被视为已落定")

	// 解析阶段的更新应带文本片段与解析时间
	var parsedUpdate map[string]interface{}
	for _, u := range repo.updates {
		if _, ok := u["parsed_at"]; ok {
			parsedUpdate = u
		}
	}
	require.NotNil(t, parsedUpdate, "应有一次带parsed_at的更新")
	assert.NotEmpty(t, parsedUpdate["raw_text_excerpt"], "应记录提取文本片段")
}

func TestResumeProcessorPublishesCompletionEvent(t *testing.T) {
	publisher := &fakePublisher{}
	p, err := NewResumeProcessor(ResumeComponents{
		Fetcher: &fakeFetcher{data: []byte("%PDF-1.4 fake")},
		Extractor: &fakeExtractor{result: &types.ExtractionResult{
			Text:   "Jane Doe, engineer, jane@example.com",
			Format: types.FormatPDF,
		}},
		Parser: &fakeParser{result: &types.ParsedResume{
			Fields: []types.ExtractedField{
				{Name: types.FieldEmail, Value: "jane@example.com", Confidence: 0.95, Source: types.SourceResume},
			},
		}},
		Reconciler: reconcile.NewReconciler(reconcile.NewMemoryProfileStore()),
		Resumes:    &fakeResumeRepo{},
		Events:     publisher,
	})
	require.NoError(t, err)

	err = p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-evt",
		CandidateID: "cand-evt",
		ObjectKey:   "resume/resume-evt/original.pdf",
	})
	require.NoError(t, err)

	require.Len(t, publisher.events, 1, "完成后应发布一条事件")
	assert.Equal(t, models.ResumeStatusCompleted, publisher.events[0].Status)
	assert.Equal(t, "resume-evt", publisher.events[0].ResumeID)
	assert.Equal(t, 1, publisher.events[0].FieldCount)
}

func TestResumeProcessorDuplicateFile(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	repo := &fakeResumeRepo{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("same bytes")},
		&fakeDedup{exists: true, existingID: "resume-original"},
		&fakeExtractor{},
		&fakeParser{},
		repo, store)

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-dup",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-dup/original.pdf",
	})
	require.NoError(t, err, "重复文件不算处理失败")

	require.NotEmpty(t, repo.updates, "重复文件应更新状态字段")
	last := repo.updates[len(repo.updates)-1]
	assert.Equal(t, models.ResumeStatusDuplicate, last["processing_status"], "状态应为DUPLICATE")

	profile, err := store.GetProfile(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Empty(t, profile, "重复文件不应写入任何字段")
}

func TestResumeProcessorHTMLContent(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	repo := &fakeResumeRepo{}
	dedup := &fakeDedup{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("<!DOCTYPE html><html>login page</html>")},
		dedup,
		&fakeExtractor{err: extractor.ErrHTMLContent},
		&fakeParser{},
		repo, store)

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-html",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-html/original.pdf",
	})
	require.Error(t, err, "HTML内容应导致处理失败")
	assert.True(t, errors.Is(err, ErrMisDownloadedContent), "应归类为误下载错误")
	assert.Equal(t, models.ResumeStatusFailed, repo.statuses[len(repo.statuses)-1], "终态应为FAILED")
	assert.Len(t, dedup.removed, 1, "失败后应回滚MD5登记")
}

func TestResumeProcessorUnsupportedFormat(t *testing.T) {
	repo := &fakeResumeRepo{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte{0x00, 0x01, 0x02}},
		&fakeDedup{},
		&fakeExtractor{err: extractor.ErrUnsupportedFormat},
		&fakeParser{},
		repo, reconcile.NewMemoryProfileStore())

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-bin",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-bin/original.bin",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDocument), "应归类为不支持的文档")
	assert.Contains(t, repo.failReason, "文本提取失败", "失败原因应记录提取错误")
}

func TestResumeProcessorDownloadFailure(t *testing.T) {
	repo := &fakeResumeRepo{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{err: errors.New("object not found")},
		&fakeDedup{},
		&fakeExtractor{},
		&fakeParser{},
		repo, reconcile.NewMemoryProfileStore())

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-miss",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-miss/original.pdf",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResumeDownloadFailed), "应归类为下载失败")
}

func TestResumeProcessorHandleMessageDropsMalformed(t *testing.T) {
	p := newResumeProcessorForTest(t,
		&fakeFetcher{},
		&fakeDedup{},
		&fakeExtractor{},
		&fakeParser{},
		&fakeResumeRepo{}, reconcile.NewMemoryProfileStore())

	assert.True(t, p.HandleMessage([]byte("not json")), "损坏的消息应被确认丢弃")
	assert.True(t, p.HandleMessage([]byte(`{"resume_id":""}`)), "缺少必要字段的消息应被确认丢弃")
}

// ---- 回复流水线 ----

func newReplyProcessorForTest(t *testing.T, messages *fakeMessageRepo, store reconcile.ProfileStore) *ReplyProcessor {
	t.Helper()
	p, err := NewReplyProcessor(
		reply.NewKeywordClassifier(),
		reconcile.NewReconciler(store),
		reconcile.NewPendingFieldSelector(3),
		messages,
	)
	require.NoError(t, err, "构造回复处理器不应失败")
	return p
}

func mustAskedJSON(t *testing.T, fields []types.FieldKey) *models.CandidateMessage {
	t.Helper()
	askedJSON, err := models.ToJSON(fields)
	require.NoError(t, err)
	return &models.CandidateMessage{
		CandidateID:     "cand-1",
		Direction:       models.MessageDirectionOutbound,
		AskedFieldsJSON: askedJSON,
		SentAt:          time.Now().Add(-time.Hour),
	}
}

func TestReplyProcessorClosesAskedLoop(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	rec := reconcile.NewReconciler(store)
	// 先把noticePeriod标记为已追问
	require.NoError(t, rec.MarkAsked(context.Background(), "cand-1", []types.FieldKey{types.FieldNoticePeriod}))

	messages := &fakeMessageRepo{
		lastOutbound: mustAskedJSON(t, []types.FieldKey{types.FieldNoticePeriod}),
	}
	p := newReplyProcessorForTest(t, messages, store)

	analysis, err := p.Process(context.Background(), types.CandidateReplyMessage{
		CandidateID: "cand-1",
		MessageID:   "msg-1",
		Body:        "Yes, I'm interested. My notice period is 2 weeks.",
		ReceivedAt:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ClassificationInterested, analysis.Classification, "应分类为有意向")

	profile, err := store.GetProfile(context.Background(), "cand-1")
	require.NoError(t, err)
	state := profile[types.FieldNoticePeriod]
	require.NotNil(t, state, "追问字段应通过回复落定")
	assert.Equal(t, "2 weeks", state.Value)
	assert.False(t, state.Asked, "回复来源的合并应清除Asked标记")
	assert.True(t, state.Answered, "0.80置信度应超过应答阈值")

	require.Len(t, messages.recorded, 1, "入站消息应落库")
	assert.Equal(t, models.MessageDirectionInbound, messages.recorded[0].Direction)
	assert.Equal(t, string(types.ClassificationInterested), messages.recorded[0].Classification)
}

func TestReplyProcessorQuestionRequiresReview(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	messages := &fakeMessageRepo{}
	p := newReplyProcessorForTest(t, messages, store)

	analysis, err := p.Process(context.Background(), types.CandidateReplyMessage{
		CandidateID: "cand-2",
		Body:        "What's the salary range for this position?",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ClassificationQuestion, analysis.Classification)
	assert.True(t, analysis.RequiresHumanReview, "提问必须转人工")
	assert.True(t, messages.reviewFlags["cand-2"], "候选人应被标记待复核")
	require.Len(t, messages.recorded, 1)
	assert.NotEmpty(t, messages.recorded[0].SuggestedReply, "提问应附建议回复")
}

func TestReplyProcessorRejectsEmptyBody(t *testing.T) {
	p := newReplyProcessorForTest(t, &fakeMessageRepo{}, reconcile.NewMemoryProfileStore())

	_, err := p.Process(context.Background(), types.CandidateReplyMessage{
		CandidateID: "cand-3",
		Body:        "   ",
	})
	require.Error(t, err, "空回复应报错")
	assert.True(t, errors.Is(err, ErrReplyHandlingFailed))
}

func TestPrepareFollowUpMarksAskedFields(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	rec := reconcile.NewReconciler(store)
	// 档案里只有邮箱，优先级字段全部缺失
	_, err := rec.Merge(context.Background(), "cand-4", types.ExtractedField{
		Name: types.FieldEmail, Value: "a@b.com", Confidence: 0.95, Source: types.SourceResume,
	})
	require.NoError(t, err)

	messages := &fakeMessageRepo{}
	p := newReplyProcessorForTest(t, messages, store)

	fields, err := p.PrepareFollowUp(context.Background(), "cand-4", "Could you share a few more details?")
	require.NoError(t, err)
	require.Len(t, fields, 3, "每轮最多追问3个字段")
	assert.Equal(t, types.FieldLocation, fields[0], "location优先级最高")

	profile, err := store.GetProfile(context.Background(), "cand-4")
	require.NoError(t, err)
	for _, key := range fields {
		require.Contains(t, profile, key)
		assert.True(t, profile[key].Asked, "追问过的字段应带Asked标记")
	}

	require.Len(t, messages.recorded, 1, "外发消息应落库")
	assert.Equal(t, models.MessageDirectionOutbound, messages.recorded[0].Direction)
	assert.NotEmpty(t, messages.recorded[0].AskedFieldsJSON, "外发消息应记录追问字段")

	// 第二轮不应重复追问同一批字段
	second, err := p.PrepareFollowUp(context.Background(), "cand-4", "A few more questions.")
	require.NoError(t, err)
	for _, key := range second {
		assert.NotContains(t, fields, key, "已问过的字段不应再次追问")
	}
}

// TestResumeProcessorInsufficientTextFailsJob 不足可用长度的碎片文本必须判失败，不得污染档案
func TestResumeProcessorInsufficientTextFailsJob(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	repo := &fakeResumeRepo{}
	dedup := &fakeDedup{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("%PDF-1.4 fake")},
		dedup,
		&fakeExtractor{result: &types.ExtractionResult{
			Text:      "John Doe john@example.com",
			Format:    types.FormatPDF,
			Strategy:  "pdf_text_layer",
			Truncated: true,
		}},
		&fakeParser{result: &types.ParsedResume{
			Fields: []types.ExtractedField{
				{Name: types.FieldEmail, Value: "john@example.com", Confidence: 0.95, Source: types.SourceResume},
			},
		}},
		repo, store)

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-frag",
		CandidateID: "cand-frag",
		ObjectKey:   "resume/resume-frag/original.pdf",
	})
	require.Error(t, err, "碎片文本不应视为处理成功")
	assert.True(t, errors.Is(err, ErrExtractTextFailed))
	assert.Equal(t, models.ResumeStatusFailed, repo.statuses[len(repo.statuses)-1], "终态应为FAILED")
	assert.Contains(t, repo.failReason, "可用长度")
	assert.Len(t, dedup.removed, 1, "失败后应回滚MD5登记")

	profile, err := store.GetProfile(context.Background(), "cand-frag")
	require.NoError(t, err)
	assert.Empty(t, profile, "碎片中的字段不应进入档案")
}

// TestResumeProcessorCreatesMissingResumeRecord 消息先于简历记录到达时补建记录
func TestResumeProcessorCreatesMissingResumeRecord(t *testing.T) {
	repo := &fakeResumeRepo{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("%PDF-1.4 fake")},
		&fakeDedup{},
		&fakeExtractor{result: &types.ExtractionResult{Text: "Jane Doe engineer", Format: types.FormatPDF}},
		&fakeParser{result: &types.ParsedResume{
			Fields: []types.ExtractedField{
				{Name: types.FieldEmail, Value: "jane@example.com", Confidence: 0.95, Source: types.SourceResume},
			},
		}},
		repo, reconcile.NewMemoryProfileStore())

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-late",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-late/original.pdf",
		FileName:    "cv.pdf",
	})
	require.NoError(t, err)

	require.Len(t, repo.created, 1, "缺席的简历记录应被补建")
	created := repo.created[0]
	assert.Equal(t, "resume-late", created.ResumeID)
	assert.Equal(t, "resume/resume-late/original.pdf", created.ObjectKey)
	assert.Equal(t, "cv.pdf", created.OriginalFilename)
	assert.Equal(t, models.ResumeStatusPending, created.ProcessingStatus)
	require.NotNil(t, created.CandidateID)
	assert.Equal(t, "cand-1", *created.CandidateID)
}

// TestResumeProcessorSkipsCreateWhenRecordExists 已有记录时不再补建
func TestResumeProcessorSkipsCreateWhenRecordExists(t *testing.T) {
	repo := &fakeResumeRepo{existing: &models.Resume{ResumeID: "resume-1"}}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("%PDF-1.4 fake")},
		&fakeDedup{},
		&fakeExtractor{result: &types.ExtractionResult{Text: "Jane Doe engineer", Format: types.FormatPDF}},
		&fakeParser{result: &types.ParsedResume{}},
		repo, reconcile.NewMemoryProfileStore())

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:    "resume-1",
		CandidateID: "cand-1",
		ObjectKey:   "resume/resume-1/original.pdf",
	})
	require.NoError(t, err)
	assert.Empty(t, repo.created, "已存在的记录不应重复创建")
}

// TestResumeProcessorResolvesCandidateFromParsedContacts 无候选人ID的上传用解析联系方式建档
func TestResumeProcessorResolvesCandidateFromParsedContacts(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	repo := &fakeResumeRepo{}
	candidates := &fakeCandidateRepo{candidate: &models.Candidate{CandidateID: "cand-new"}}
	p, err := NewResumeProcessor(ResumeComponents{
		Fetcher: &fakeFetcher{data: []byte("%PDF-1.4 fake")},
		Extractor: &fakeExtractor{result: &types.ExtractionResult{
			Text:   "Jane Doe, Software Engineer, jane@example.com",
			Format: types.FormatPDF,
		}},
		Parser: &fakeParser{result: &types.ParsedResume{
			Fields: []types.ExtractedField{
				{Name: types.FieldName, Value: "Jane Doe", Confidence: 0.9, Source: types.SourceResume},
				{Name: types.FieldEmail, Value: "jane@example.com", Confidence: 0.95, Source: types.SourceResume},
			},
		}},
		Reconciler: reconcile.NewReconciler(store),
		Resumes:    repo,
		Candidates: candidates,
	})
	require.NoError(t, err)

	err = p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:  "resume-cold",
		ObjectKey: "resume/resume-cold/original.pdf",
	})
	require.NoError(t, err, "冷上传解析出联系方式后应能建档")

	assert.Equal(t, "jane@example.com", candidates.gotEmail, "建档应使用解析出的邮箱")
	assert.Equal(t, "Jane Doe", candidates.gotName)

	profile, err := store.GetProfile(context.Background(), "cand-new")
	require.NoError(t, err)
	assert.Contains(t, profile, types.FieldEmail, "字段应调和进新建候选人的档案")

	var linked bool
	for _, u := range repo.updates {
		if u["candidate_id"] == "cand-new" {
			linked = true
		}
	}
	assert.True(t, linked, "简历记录应回填候选人ID")
}

// TestResumeProcessorFailsColdUploadWithoutCandidateRepo 无候选人ID又没有建档能力时判失败
func TestResumeProcessorFailsColdUploadWithoutCandidateRepo(t *testing.T) {
	repo := &fakeResumeRepo{}
	p := newResumeProcessorForTest(t,
		&fakeFetcher{data: []byte("%PDF-1.4 fake")},
		&fakeDedup{},
		&fakeExtractor{result: &types.ExtractionResult{Text: "Jane Doe engineer", Format: types.FormatPDF}},
		&fakeParser{result: &types.ParsedResume{}},
		repo, reconcile.NewMemoryProfileStore())

	err := p.Process(context.Background(), types.ResumeUploadMessage{
		ResumeID:  "resume-orphan",
		ObjectKey: "resume/resume-orphan/original.pdf",
	})
	require.Error(t, err)
	assert.Equal(t, models.ResumeStatusFailed, repo.statuses[len(repo.statuses)-1])
	assert.Contains(t, repo.failReason, "建档失败")
}

// TestReplyProcessorHoldsCandidateLock 处理期间应持有候选人锁并在结束后释放
func TestReplyProcessorHoldsCandidateLock(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	locker := &fakeLocker{}
	p, err := NewReplyProcessor(
		reply.NewKeywordClassifier(),
		reconcile.NewReconciler(store),
		reconcile.NewPendingFieldSelector(3),
		&fakeMessageRepo{},
		WithCandidateLocker(locker),
	)
	require.NoError(t, err)

	_, err = p.Process(context.Background(), types.CandidateReplyMessage{
		CandidateID: "cand-lock",
		Body:        "Yes, I'm interested.",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cand-lock"}, locker.acquired, "处理前应获取候选人锁")
	assert.Equal(t, []string{"cand-lock"}, locker.released, "处理后应释放候选人锁")
}

// TestReplyProcessorRequeuesWhenCandidateBusy 锁被占时消息应重投而非丢弃
func TestReplyProcessorRequeuesWhenCandidateBusy(t *testing.T) {
	messages := &fakeMessageRepo{}
	p, err := NewReplyProcessor(
		reply.NewKeywordClassifier(),
		reconcile.NewReconciler(reconcile.NewMemoryProfileStore()),
		reconcile.NewPendingFieldSelector(3),
		messages,
		WithCandidateLocker(&fakeLocker{contended: true}),
	)
	require.NoError(t, err)

	_, err = p.Process(context.Background(), types.CandidateReplyMessage{
		CandidateID: "cand-busy",
		Body:        "Yes, interested.",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCandidateBusy))
	assert.Empty(t, messages.recorded, "锁竞争时不应落任何消息")

	ack := p.HandleMessage([]byte(`{"candidate_id":"cand-busy","body":"Yes, interested."}`))
	assert.False(t, ack, "锁竞争的消息应重投")
}

// TestReplyProcessorDropsUnknownCandidate 未知候选人的回复不应凭空建档
func TestReplyProcessorDropsUnknownCandidate(t *testing.T) {
	store := reconcile.NewMemoryProfileStore()
	messages := &fakeMessageRepo{missingCandidate: true}
	p := newReplyProcessorForTest(t, messages, store)

	_, err := p.Process(context.Background(), types.CandidateReplyMessage{
		CandidateID: "cand-ghost",
		Body:        "Yes, I'm interested.",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReplyHandlingFailed))
	assert.Empty(t, messages.recorded, "未知候选人不应落消息记录")

	profile, err := store.GetProfile(context.Background(), "cand-ghost")
	require.NoError(t, err)
	assert.Empty(t, profile, "未知候选人不应产生档案")
}
