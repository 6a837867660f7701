// Package prompt holds the prompt templates sent to the completion
// provider and renders them with ${name} placeholders.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Name identifies a prompt template.
type Name string

// Template names.
const (
	Chat      Name = "chat"
	Intent    Name = "intent"
	Weather   Name = "weather"
	Feed      Name = "feed"
	Doc       Name = "doc"
	Rewrite   Name = "rewrite"
	Selection Name = "selection"
)

var defaults = map[Name]string{
	Chat: `你是对话前置过滤器。下面是用户最近的一句话：

${input}

1. 如果你觉得这句话意思不清楚 / 跟任何任务都无关，请委婉说明“我没太理解你的意思”，然后在最后一行输出：ROUTE=none
2. 如果你觉得这句话有明确需求（比如要天气、新闻、文档等），简单回复一句，然后在最后一行输出：ROUTE=intent_expert

注意：最后一行必须是单独一行，格式严格为：
ROUTE=intent_expert`,

	Intent: `你是一个“任务规划助手 + 路由器”。现在给你一段用户输入，请你：
1. 先用 1-2 句话用中文总结用户的核心意图（不要出现“用户意图为”这类前缀）。
2. 然后根据意图判断用户更像是在要「天气」还是「RSS 新闻」，或者两者都不是。

你必须在最后一行，单独输出一个路由标签，格式严格为（只能三选一）：
- ROUTE=weather
- ROUTE=rss
- ROUTE=doc

其中：
- 当用户主要关心天气、温度、下雨、穿衣等信息时，选择 ROUTE=weather
- 当用户想看新闻、资讯、热点、RSS 等内容时，选择 ROUTE=rss
- 当用户需求与天气和新闻都无关时，选择 ROUTE=doc

用户输入：
${input}`,

	Weather: `你是天气助手。需要根据定位来展示实时气温和24小时预报。
如果发现是国内IP，则无需修改查询城市，如果发现IP是不在中国大陆，则强制修正为北京。
必须包含具体温度数字。
请直接输出简报内容，不要废话。
用中文显示。
用户原话：${input}`,

	Feed: `请读取 RSS 源 ${url}。
请列出前 10 篇文章，严格按照以下 Markdown 格式输出，不要包含其他废话：

1. [文章标题](文章链接)
   - 摘要：简述内容...

注意：
- 必须使用 [标题](链接) 的格式隐藏长链接。
- 摘要部分换行并缩进。
- 不要在方括号 [] 和圆括号 () 之间加空格。如果标题中包含方括号，请将其转义或替换为其他符号。`,

	Doc: `你是高级分析师助手。需要根据用户需求来展示文档内容。用户需求是：${user_intent}
你可以用以下网址进行资料检索：
https://huggingface.co/datasets
https://www.kaggle.com/datasets
请直接输出文档内容，按照用户需求展示文档内容。
注意：
- 必须包含具体数据和图表
- 必须包含具体分析和结论
- 必须包含具体建议和行动计划
- 必须包含具体风险和机会
- 不要重复的信息
- 必须用中文显示。
请严格使用 Markdown 格式输出链接，格式为：[标题](URL)。`,

	Rewrite: `你是资深编辑。请严格按用户指令改写下方文档，**只输出改写后的完整 Markdown**，不要任何解释。
用户指令：${instruction}
原文档：
${doc}`,

	Selection: `请对以下内容进行改写，保持原意、优化表达，使语句更通顺专业。只输出改写后的正文，不要加解释或前缀。
- 改写后的内容必须符合用户意图
- 改写后的内容不能和原内容重复
- 若有完整文档上下文，请确保改写后的风格与文档一致
${doc_block}
${text}
${hint_block}`,
}

// Library renders prompt templates, with optional per-name overrides.
type Library struct {
	exp       *Expander
	templates map[Name]string
}

// NewLibrary builds a Library from the built-in templates and overrides.
// An override must name a known template and may only use the variables
// the built-in one uses.
func NewLibrary(overrides map[string]string) (*Library, error) {
	templates := make(map[Name]string, len(defaults))
	for name, text := range defaults {
		templates[name] = text
	}

	var problems []string
	for key, text := range overrides {
		name := Name(key)
		base, ok := defaults[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown prompt %q", key))
			continue
		}
		allowed := map[string]bool{}
		for _, v := range Variables(base) {
			allowed[v] = true
		}
		for _, v := range Variables(text) {
			if !allowed[v] {
				problems = append(problems, fmt.Sprintf("prompt %q uses unknown variable %q", key, v))
			}
		}
		templates[name] = text
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, fmt.Errorf("prompt overrides: %s", strings.Join(problems, "; "))
	}
	return &Library{exp: NewExpander(MissingError), templates: templates}, nil
}

// Render expands the named template.
func (l *Library) Render(name Name, vars map[string]any) (string, error) {
	text, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	out, err := l.exp.Expand(text, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}

// MustRender is Render for templates whose variables the caller always
// supplies. It panics on error.
func (l *Library) MustRender(name Name, vars map[string]any) string {
	out, err := l.Render(name, vars)
	if err != nil {
		panic(fmt.Sprintf("prompt: %v", err))
	}
	return out
}
