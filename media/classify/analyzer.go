package classify

import (
	"context"

	"github.com/BaSui01/mediaflow/llm/chat"
)

// MaxTextContent 送入模型的文本内容上限（字符）
const MaxTextContent = 1000

// Analyzer 为文件生成描述性名称与分类. 实现只负责调用模型并返回原始文本，
// 规范化与回退由 Organizer 完成.
type Analyzer interface {
	DescribeImage(ctx context.Context, path string) (string, error)
	CategorizeImage(ctx context.Context, path string) (string, error)
	DescribeText(ctx context.Context, content string) (string, error)
	CategorizeText(ctx context.Context, content string) (string, error)
}

// Asker 发送一次多模态对话，由 chat.Client 实现
type Asker interface {
	Ask(ctx context.Context, model, system string, parts ...chat.Part) (string, error)
}

const (
	describeImagePrompt = `Analyze this image and provide a short, descriptive filename (2-4 words) that captures its main subject.
Focus on the most prominent elements like objects, people, animals, scenes, or activities.
Respond with only the descriptive name, no additional text or explanation.
Examples: "sunset_beach", "golden_retriever_park", "city_skyline_night"`

	categorizeImagePrompt = `Analyze this image and determine the most appropriate category folder name for organizing it.
Look at the main subject/content and suggest a simple, descriptive category name (1-2 words, lowercase, use underscore for spaces).
Examples of good category names: cats, dogs, animals, people, portraits, food, nature, landscapes, cars, buildings, art, technology, sports.
Respond with only the category name, no additional text or explanation.`

	describeTextPrompt = `Analyze the following text content and provide a short, descriptive filename (2-4 words) that captures its main subject or content.
Focus on the most prominent elements like topics, themes, or key entities.
Respond with only the descriptive name, no additional text or explanation.
Examples: "project_report", "meeting_minutes", "travel_guide", "recipe_book"

Text content:
`

	categorizeTextPrompt = `Analyze the following text content and classify it into one of these general categories:
- documents: reports, articles, essays, research papers, official records
- notes: meeting minutes, personal notes, memos, drafts
- code: programming scripts, configuration files, logs, technical specifications
- creative: stories, poems, scripts, lyrics, artistic descriptions
- data: lists, tables, raw data, spreadsheets, databases
- communication: emails, chats, messages, letters, transcripts
- misc: anything that doesn't fit well into other categories

Respond with only the category name (e.g., "documents", "notes", "code"), no additional text.

Text content:
`
)

// ChatAnalyzer 用视觉模型分析图片、文本模型分析文本
type ChatAnalyzer struct {
	asker       Asker
	visionModel string
	textModel   string
}

// NewChatAnalyzer 创建分析器
func NewChatAnalyzer(asker Asker, visionModel, textModel string) *ChatAnalyzer {
	return &ChatAnalyzer{asker: asker, visionModel: visionModel, textModel: textModel}
}

// DescribeImage 实现 Analyzer
func (a *ChatAnalyzer) DescribeImage(ctx context.Context, path string) (string, error) {
	return a.askImage(ctx, path, describeImagePrompt)
}

// CategorizeImage 实现 Analyzer
func (a *ChatAnalyzer) CategorizeImage(ctx context.Context, path string) (string, error) {
	return a.askImage(ctx, path, categorizeImagePrompt)
}

// DescribeText 实现 Analyzer
func (a *ChatAnalyzer) DescribeText(ctx context.Context, content string) (string, error) {
	return a.asker.Ask(ctx, a.textModel, "", chat.TextPart(describeTextPrompt+TruncateText(content)))
}

// CategorizeText 实现 Analyzer
func (a *ChatAnalyzer) CategorizeText(ctx context.Context, content string) (string, error) {
	return a.asker.Ask(ctx, a.textModel, "", chat.TextPart(categorizeTextPrompt+TruncateText(content)))
}

func (a *ChatAnalyzer) askImage(ctx context.Context, path, prompt string) (string, error) {
	uri, err := chat.ImageDataURI(path)
	if err != nil {
		return "", err
	}
	return a.asker.Ask(ctx, a.visionModel, "", chat.ImagePart(uri), chat.TextPart(prompt))
}

// TruncateText 截断到 MaxTextContent 个字符
func TruncateText(s string) string {
	r := []rune(s)
	if len(r) <= MaxTextContent {
		return s
	}
	return string(r[:MaxTextContent])
}
