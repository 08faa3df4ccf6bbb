package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: engine:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "engine"

	// FileModulePrefix 文件模块
	FileModulePrefix = "file"
	// CandidateModulePrefix 候选人模块
	CandidateModulePrefix = "candidate"

	// EntityDedupSet 去重集合实体
	EntityDedupSet = "dedup_set"
	// EntityMD5ToResume MD5到简历ID的映射实体
	EntityMD5ToResume = "md5_to_resume"
	// EntityProfile 字段档案实体
	EntityProfile = "profile"
	// EntityLock 分布式锁实体
	EntityLock = "lock"

	// KeyFileMD5Set 原始文件MD5集合，用于快速去重 (SET)
	// 格式: engine:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileMD5ToResumeID MD5到ResumeID的映射 (STRING)
	// 格式: engine:file:md5_to_resume:{md5}
	KeyFileMD5ToResumeID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToResume + ":%s"

	// KeyCandidateProfile 候选人字段档案缓存 (STRING, JSON)
	// 格式: engine:candidate:profile:{candidateID}
	KeyCandidateProfile = AppPrefix + ":" + CandidateModulePrefix + ":" + EntityProfile + ":%s"

	// KeyCandidateLock 候选人级别的处理锁 (STRING)
	// 格式: engine:candidate:lock:{candidateID}
	KeyCandidateLock = AppPrefix + ":" + CandidateModulePrefix + ":" + EntityLock + ":%s"
)
