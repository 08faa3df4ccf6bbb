package fields

import "regexp"

// 所有正则在包加载时编译一次
// Go的RE2不支持环视，分节与分条使用逐行扫描代替Python风格的先行断言
var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// phonePatterns 按顺序尝试：北美样式优先，其次通用国际样式
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\+?\d{1,2}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`),
		regexp.MustCompile(`\+\d{1,3}[\s.-]?\d{1,14}([\s.-]?\d{1,13})?`),
	}

	linkedinPattern = regexp.MustCompile(`(?i)(https?://(www\.)?)?linkedin\.com/in/[\w-]+`)
	githubPattern   = regexp.MustCompile(`(?i)(https?://(www\.)?)?github\.com/[\w-]+`)

	// portfolioLabeledPattern 带"portfolio:"等标签的URL
	portfolioLabeledPattern = regexp.MustCompile(`(?i)\b(?:portfolio|website|personal site):?\s*(https?://\S+)`)
	// portfolioBarePattern 裸URL，限定常见个人站点后缀
	portfolioBarePattern = regexp.MustCompile(`(?i)\bhttps?://(?:\S+\.)?(?:com|io|dev|tech|me)\S*`)

	// cityStatePattern "City, ST" 样式
	cityStatePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z]{2}\b`)
	// cityCountryPattern "City, Country" 样式
	cityCountryPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*,\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	// basedInPattern "based in X" 样式
	basedInPattern = regexp.MustCompile(`(?i)\b(?:based in|located in|from)\s+([^,\n]+)`)
	// addressPattern 门牌地址兜底
	addressPattern = regexp.MustCompile(`\d+\s+[\w\s]+,\s*[\w\s]+(?:,\s*\w+)?`)

	// dateRangePattern 工作经历的日期区间："Jan 2020 - Mar 2023"、"2019–present" 等
	dateRangePattern = regexp.MustCompile(`(?i)((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}|\d{1,2}/\d{4}|\d{4})\s*[-–—]\s*((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}|\d{1,2}/\d{4}|\d{4}|present|current)`)

	// entryStartPattern 以日期或在职标记开头的行，视为新经历条目的边界
	entryStartPattern = regexp.MustCompile(`(?i)^\s*(?:\d{4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{4}|present|current)`)

	// titleAtCompanyPattern "Title at Company" 样式
	titleAtCompanyPattern = regexp.MustCompile(`(?i)^(.+?)\s+at\s+(.+)$`)
	// titleCommaCompanyPattern "Title, Company" 样式
	titleCommaCompanyPattern = regexp.MustCompile(`^(.+?),\s*(.+)$`)
	// titleDashCompanyPattern "Company - Title" 样式
	titleDashCompanyPattern = regexp.MustCompile(`^(.+?)\s*[-–—]\s*(.+)$`)

	// bulletLinePattern 弹点行
	bulletLinePattern = regexp.MustCompile(`(?m)^\s*[•\-*]\s*(.+)$`)
	// bulletPrefixPattern 行首弹点标记，用于清洗描述
	bulletPrefixPattern = regexp.MustCompile(`^[•\-*]\s*`)

	// degreePattern 学位关键词
	degreePattern = regexp.MustCompile(`(?i)\b(B\.?S\.?|B\.?A\.?|M\.?S\.?|M\.?A\.?|Ph\.?D\.?|MBA|Bachelor|Master|Doctorate)\b`)
	// yearPattern 19xx/20xx年份
	yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	// fieldOfStudyPattern "in Computer Science" 样式的专业
	fieldOfStudyPattern = regexp.MustCompile(`\b(?:in|of)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

	// certPattern 常见认证名称
	certPattern = regexp.MustCompile(`\b(AWS\s+Certified|Azure\s+Certified|Google\s+Cloud\s+Certified|PMP|CISSP|CEH|CCNA|CCNP|Scrum\s+Master|SAFe)\b`)

	// nonDigitPattern 电话号码归一化时剔除的字符
	nonDigitPattern = regexp.MustCompile(`[^\d+]`)

	// monthYearPattern "Mar 2023" 样式日期
	monthYearPattern = regexp.MustCompile(`(?i)^(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+(\d{4})$`)
	// numericMonthYearPattern "03/2023" 样式日期
	numericMonthYearPattern = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
	// bareYearPattern 纯年份
	bareYearPattern = regexp.MustCompile(`^\d{4}$`)
)
