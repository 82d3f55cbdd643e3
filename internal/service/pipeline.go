package service

import (
	"context"
	"fmt"
	"strings"

	"pagegen-backend/pkg/logger"

	"github.com/cloudwego/eino/callbacks"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

const (
	prepareNode = "PrepareMessages"
	modelNode   = "PageModel"
)

// Pipeline is the compiled generation chain: message preparation followed
// by the chat model. It satisfies Generator.
type Pipeline struct {
	runnable compose.Runnable[[]*schema.Message, *schema.Message]
	handler  callbacks.Handler
}

func NewPipeline(ctx context.Context, cm einoModel.ChatModel) (*Pipeline, error) {
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.
		AppendLambda(compose.InvokableLambda(prepareMessages), compose.WithNodeName(prepareNode)).
		AppendChatModel(cm, compose.WithNodeName(modelNode))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile generation chain: %w", err)
	}

	return &Pipeline{
		runnable: runnable,
		handler:  logCallback(),
	}, nil
}

func (p *Pipeline) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	return p.runnable.Stream(ctx, input,
		compose.WithCallbacks(p.handler),
		compose.WithChatModelOption(opts...),
	)
}

// prepareMessages drops blank turns, which some providers reject.
func prepareMessages(ctx context.Context, in []*schema.Message) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(in))
	for _, m := range in {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}
	return out, nil
}

func logCallback() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			logger.Debugf("[%s] start", info.Name)
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			logger.Errorf("[%s] failed: %v", info.Name, err)
			return ctx
		}).
		Build()
}
