package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lighthuangfu/agent-study/internal/archive"
	"github.com/lighthuangfu/agent-study/internal/prompt"
	"github.com/lighthuangfu/agent-study/internal/vectordb"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// Node IDs.
const (
	NodeChat       = "chat"
	NodeIntent     = "intent"
	NodeWeather    = "weather"
	NodeRSS        = "rss"
	NodeDocFlow    = "doc_flow"
	NodeDoc        = "doc"
	NodeDocRetry   = "doc_retry"
	NodeRewrite    = "doc_rewrite"
	NodeAggregator = "aggregator"
)

const (
	docEmptyIntent = "用户需求为空，无法进行文档查询"
	docStarted     = "已创建文档子 Agent，开始调用工具生成内容…"
	docFinished    = "文档查询完成"
	docPreviewLen  = 100
)

// streamText renders a prompt, streams the completion and forwards every
// fragment to the run's sink as a chunk of node.
func (st *steps) streamText(fctx flowgraph.Context, c context.Context, node string, name prompt.Name, vars map[string]any) (string, error) {
	text, err := st.d.Prompts.Render(name, vars)
	if err != nil {
		return "", err
	}
	ch, err := st.d.LLM.Stream(c, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(text)},
		Tools:    st.d.Tools,
	})
	if err != nil {
		return "", err
	}
	return llm.Collect(c, ch, func(chunk string) {
		fctx.Emit(event.Chunk(node, chunk))
	})
}

// doc generates the draft under the document timeout. The outcome is
// recorded in doc_status; it never fails the run.
func (st *steps) doc(ctx flowgraph.Context, s State) (Update, error) {
	if strings.TrimSpace(s.UserIntent) == "" {
		return Update{
			DocStatus:    ptr(DocError),
			DocLastError: ptr(docEmptyIntent),
			DocLogs:      []string{docEmptyIntent},
		}, nil
	}

	logs := []string{docStarted}
	timeout := st.d.Config.DocTimeout
	start := time.Now()

	out := flowgraph.Call(ctx, timeout, func(c context.Context) (string, error) {
		return st.streamText(ctx, c, NodeDoc, prompt.Doc, map[string]any{"user_intent": s.UserIntent})
	})
	took := elapsed(time.Since(start).Seconds())

	switch out.Kind {
	case flowgraph.OutcomeOK:
		content := out.Value
		logs = append(logs,
			fmt.Sprintf("正在获取文档信息的结果预览：%s...", previewRunes(content, docPreviewLen)),
			docFinished,
			fmt.Sprintf("文档节点本次调用成功（用时 %s）", took))
		title := archive.ExtractTitle(content)
		docID := uuid.NewString()
		st.persist(ctx, s, docID, "", title, content)
		return Update{
			DocStatus:    ptr(DocSuccess),
			DocLastError: ptr(""),
			DocLogs:      logs,
			Doc:          ptr(content),
			DocID:        ptr(docID),
			DocTitle:     ptr(title),
			Messages:     []llm.Message{assistantMessage(NodeDoc, content)},
		}, nil

	case flowgraph.OutcomeTimedOut:
		msg := fmt.Sprintf("文档节点单次调用超时（超过 %d 秒，总用时 %s）", int(timeout.Seconds()), took)
		ctx.Logger().Warn("document step timed out", "timeout", timeout, "retry_count", s.DocRetryCount)
		return Update{
			DocStatus:    ptr(DocTimeout),
			DocLastError: ptr(msg),
			DocLogs:      append(logs, "⚠️ "+msg),
		}, nil

	default:
		msg := fmt.Sprintf("文档节点调用异常: %s（用时 %s）", out.Reason(), took)
		ctx.Logger().Error("document step failed", "error", out.Err)
		return Update{
			DocStatus:    ptr(DocError),
			DocLastError: ptr(out.Reason()),
			DocLogs:      append(logs, docFinished, "⚠️ "+msg),
		}, nil
	}
}

// docRetry counts one more attempt. Only this step touches the counter.
func (st *steps) docRetry(ctx flowgraph.Context, s State) (Update, error) {
	count := s.DocRetryCount + 1
	limit := st.d.Config.MaxDocRetries
	if limit <= 0 {
		limit = MaxDocRetries
	}

	var line string
	if s.DocStatus == DocTimeout && count < limit {
		line = fmt.Sprintf("⚠️ 文档服务超时（已重试 %d 次）", count)
	} else {
		line = fmt.Sprintf("⚠️ 文档服务失败（已重试 %d 次）", count)
	}
	ctx.Logger().Info("document retry", "count", count, "status", s.DocStatus)
	ctx.Emit(event.Status(NodeDocRetry, line))
	return Update{DocRetryCount: ptr(count), DocLogs: []string{line}}, nil
}

// rewrite applies the pending instruction to the draft and clears it. A
// failed rewrite keeps the previous draft.
func (st *steps) rewrite(ctx flowgraph.Context, s State) (Update, error) {
	instruction := strings.TrimSpace(s.RewriteInstruction)
	if instruction == "" {
		return Update{}, nil
	}

	out := flowgraph.Call(ctx, st.d.Config.RewriteTimeout, func(c context.Context) (string, error) {
		return st.streamText(ctx, c, NodeRewrite, prompt.Rewrite, map[string]any{
			"instruction": instruction,
			"doc":         s.Doc,
		})
	})

	if !out.OK() {
		ctx.Logger().Warn("rewrite failed", "reason", out.Reason())
		return Update{
			RewriteInstruction: ptr(""),
			DocLogs:            []string{"⚠️ 文档改写失败：" + out.Reason()},
		}, nil
	}

	content := out.Value
	title := archive.ExtractTitle(content)
	docID := uuid.NewString()
	st.persist(ctx, s, docID, s.DocID, title, content)
	return Update{
		Doc:                ptr(content),
		DocID:              ptr(docID),
		DocTitle:           ptr(title),
		RewriteInstruction: ptr(""),
		DocLogs:            []string{"文档已按指令改写：" + instruction},
		Messages: []llm.Message{
			llm.UserMessage(instruction),
			assistantMessage(NodeRewrite, content),
		},
	}, nil
}

// persist archives and indexes a draft off the step's critical path.
func (st *steps) persist(ctx context.Context, s State, docID, parentID, title, content string) {
	if st.d.Archive == nil && st.d.Indexer == nil {
		return
	}
	st.bg.Go(ctx, "persist "+docID, func(c context.Context) error {
		var errs []error
		if st.d.Archive != nil {
			_, err := st.d.Archive.Save(c, archive.Document{
				UserID:      s.UserID,
				DocID:       docID,
				Title:       title,
				Content:     content,
				ParentDocID: parentID,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("archive: %w", err))
			}
		}
		if st.d.Indexer != nil {
			_, err := st.d.Indexer.IndexDocument(c, vectordb.Document{
				ID:   docID,
				Text: content,
				Payload: map[string]any{
					"title":       title,
					"user_intent": s.UserIntent,
					"user_id":     s.UserID,
					"session_id":  s.SessionID,
				},
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("index: %w", err))
			}
		}
		return errors.Join(errs...)
	})
}

func previewRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
