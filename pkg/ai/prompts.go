package ai

// ExtractPrompt asks for entities and relationships as a single JSON object.
// Arguments: entity types, relationship types, text.
const ExtractPrompt = `你是一个专业的知识图谱构建助手。请从以下文本中提取实体和关系。

# 任务说明
1. 识别文本中的重要实体（如人物、组织、地点、事件、概念、技术、产品等）
2. 识别实体之间的关系
3. 为每个实体和关系提供简短描述

# 输出格式（严格的 JSON 格式）
{
    "entities": [
        {"name": "实体名称", "type": "实体类型", "description": "对实体的简短描述"}
    ],
    "relationships": [
        {"source": "源实体名称", "target": "目标实体名称", "type": "关系类型", "description": "对关系的简短描述"}
    ]
}

# 可用实体类型
%s

# 可用关系类型
%s

# 文本内容
%s

请输出 JSON 格式的提取结果：`

// CommunitySummaryPrompt asks for a short synthesis of one community.
// Arguments: title, member count, entity lines, relationship lines.
const CommunitySummaryPrompt = `请为以下知识图谱社区生成一个简洁的摘要。

# 社区信息
- 社区名称: %s
- 成员数量: %d

# 社区中的实体
%s

# 实体间的关系
%s

请生成一个 2-3 句话的摘要，概括这个社区的主要内容和主题。
摘要应该：
1. 说明社区涉及的主要主题或领域
2. 提及最重要的实体
3. 描述实体之间的主要关系

摘要：`

// LocalSearchPrompt grounds the summary on entities, relationships and an
// excerpt of the source. Arguments: entities, relationships, text excerpt.
const LocalSearchPrompt = `基于以下知识图谱上下文，请生成文章摘要。

# 相关实体信息
%s

# 实体关系
%s

# 原文内容
%s

请根据知识图谱提供的结构化信息，生成一个准确、全面的摘要。
摘要应该：
1. 突出文章的核心主题和关键实体
2. 描述主要实体之间的关系
3. 提供文章的整体观点和结论

摘要：`

// GlobalSearchPrompt composes a summary from ranked community summaries only.
// Arguments: community summary lines.
const GlobalSearchPrompt = `基于以下社区摘要信息，请回答关于文章整体的问题。

# 社区摘要
%s

# 原始问题/摘要请求
请生成一个全面的文章摘要，概括文章的主要主题、核心论点和关键结论。

# 要求
1. 综合所有社区的信息，提供全局视角
2. 识别跨社区的共同主题
3. 突出最重要的观点和发现

全局摘要：`

// SummaryPrompt is used by the plain LLM summarizer.
// Arguments: style instruction, max length, text.
const SummaryPrompt = `# 角色设定
你是一位资深的内容分析专家，擅长快速提炼文章核心观点、识别关键信息。

# 风格要求
%s

# 字数控制
摘要部分严格控制在 %d 字以内。

# 待分析文章
---
%s
---

# 输出格式（严格的 JSON 格式）
{"summary": "摘要正文", "key_points": ["要点一", "要点二"], "tags": ["标签一", "标签二"]}`

// StyleInstructions maps a summary style to its prompt instruction.
var StyleInstructions = map[string]string{
	"concise":  "简洁明了，用 2-3 句话概括文章核心内容。",
	"detailed": "详细全面，覆盖文章的主要论点、论据和结论。",
	"academic": "使用学术化的表述，突出研究问题、方法和结论。",
	"business": "面向商业读者，突出商业价值、市场影响和行动建议。",
	"bullet":   "使用要点列表的形式，每个要点一句话。",
}
