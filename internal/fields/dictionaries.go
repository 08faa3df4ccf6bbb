package fields

// 技能与关键词字典
// 提取与打分都依赖这些封闭集合，保证结果确定可复现

// technicalSkills 技术技能字典，全部小写
var technicalSkills = map[string]bool{
	"python": true, "java": true, "javascript": true, "typescript": true,
	"react": true, "angular": true, "vue": true,
	"node.js": true, "django": true, "flask": true, "fastapi": true,
	"spring": true, "express": true, "laravel": true,
	"postgresql": true, "mysql": true, "mongodb": true, "redis": true,
	"elasticsearch": true, "docker": true,
	"kubernetes": true, "aws": true, "azure": true, "gcp": true,
	"terraform": true, "ansible": true, "jenkins": true,
	"git": true, "github": true, "gitlab": true, "ci/cd": true,
	"rest": true, "graphql": true, "microservices": true,
	"go": true, "golang": true, "rust": true, "kafka": true, "rabbitmq": true,
}

// softSkills 软技能字典，全部小写
var softSkills = map[string]bool{
	"leadership": true, "communication": true, "teamwork": true,
	"problem-solving": true, "critical thinking": true, "time management": true,
	"adaptability": true, "creativity": true, "collaboration": true,
	"project management": true, "agile": true, "scrum": true,
}

// isKnownSkill 技能是否出现在任一字典中
func isKnownSkill(skill string) bool {
	return technicalSkills[skill] || softSkills[skill]
}

// toolKeywords 工具类技能的子串标记
var toolKeywords = []string{"git", "docker", "jenkins", "jira", "confluence"}

// languageKeywords 语言类技能的子串标记
var languageKeywords = []string{"english", "spanish", "french", "german", "chinese"}

// commonLanguages 常见语言列表，用于语言识别
var commonLanguages = []string{
	"english", "spanish", "french", "german", "chinese",
	"hindi", "arabic", "portuguese", "russian", "japanese",
}

// sectionHeaders 简历常见分节标题，小写归一后匹配
var sectionHeaders = []string{
	"summary", "objective", "experience", "work", "employment",
	"education", "academic", "skills", "technical", "competencies",
	"projects", "certifications", "awards", "languages",
	"publications", "references",
}

// nameExclusions 姓名行中不应出现的简历套话
var nameExclusions = []string{"resume", "cv", "curriculum", "vitae", "phone", "email", "@"}

// placeholderEmailDomains 占位邮箱域名，命中则跳过该匹配
var placeholderEmailDomains = []string{"example.com", "test.com", "placeholder"}

// degreeLevels 学位等级排序，用于选出最高学历
var degreeLevels = map[string]int{
	"ph.d": 4, "phd": 4, "doctorate": 4,
	"mba": 3, "m.s": 3, "ms": 3, "m.a": 3, "ma": 3, "master": 3,
	"b.s": 2, "bs": 2, "b.a": 2, "ba": 2, "bachelor": 2,
}
