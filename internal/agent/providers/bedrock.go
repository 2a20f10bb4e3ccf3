package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/nexuscore/agentrt/internal/agent"
	"github.com/nexuscore/agentrt/internal/apperr"
)

// BedrockProvider adapts AWS Bedrock's Converse API to agent.LLMProvider.
type BedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
	retry        RetryConfig
}

// BedrockConfig configures a BedrockProvider. Credentials fall back to the
// default AWS chain (env, IAM role) when AccessKeyID/SecretAccessKey are empty.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	Retry           RetryConfig
}

// NewBedrockProvider loads the AWS SDK config and builds the client.
func NewBedrockProvider(ctx context.Context, cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: cfg.DefaultModel,
		retry:        cfg.Retry,
	}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) SupportsTools() bool { return true }

func (p *BedrockProvider) Models() []agent.Model {
	return []agent.Model{
		baseModel("anthropic.claude-3-opus-20240229-v1:0", 200000),
		baseModel("anthropic.claude-3-sonnet-20240229-v1:0", 200000),
		baseModel("anthropic.claude-3-haiku-20240307-v1:0", 200000),
		baseModel("amazon.titan-text-express-v1", 8192),
		baseModel("meta.llama3-70b-instruct-v1:0", 8192),
		baseModel("mistral.mixtral-8x7b-instruct-v0:1", 32768),
		baseModel("cohere.command-r-plus-v1:0", 128000),
	}
}

// Complete uses the blocking Converse API rather than ConverseStream, since
// the Agent Loop wants one aggregated response per round.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	model := modelOrDefault(req.Model, p.defaultModel)

	messages, err := convertMessagesToBedrock(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("bedrock: convert messages: %w", err)
	}

	converseReq := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}
	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		maxTokens := int32(min(req.MaxTokens, math.MaxInt32))
		converseReq.InferenceConfig = &types.InferenceConfiguration{MaxTokens: aws.Int32(maxTokens)}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := convertToolsToBedrock(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("bedrock: convert tools: %w", err)
		}
		converseReq.ToolConfig = toolConfig
	}

	var out *bedrockruntime.ConverseOutput
	err = apperr.Retry(ctx, p.retry.backoffPolicy(), func() error {
		var callErr error
		out, callErr = p.client.Converse(ctx, converseReq)
		if callErr != nil {
			return classifyBedrockError(callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return toBedrockCompletionResponse(out), nil
}

func convertMessagesToBedrock(messages []agent.CompletionMessage) ([]types.Message, error) {
	out := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			continue
		}

		var content []types.ContentBlock
		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}
		for _, tr := range msg.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Content}},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var input any
			if len(tc.Arguments) > 0 {
				if err := json.Unmarshal(tc.Arguments, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call arguments: %w", err)
				}
			} else {
				input = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				},
			})
		}
		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: content})
	}
	return out, nil
}

func convertToolsToBedrock(tools []agent.ToolDefinition) (*types.ToolConfiguration, error) {
	specs := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		var schema any
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
			}
		} else {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &types.ToolConfiguration{Tools: specs}, nil
}

func toBedrockCompletionResponse(out *bedrockruntime.ConverseOutput) *agent.CompletionResponse {
	resp := &agent.CompletionResponse{}
	if out.Usage != nil {
		resp.InputTokens = int(aws.ToInt32(out.Usage.InputTokens))
		resp.OutputTokens = int(aws.ToInt32(out.Usage.OutputTokens))
	}
	msgOutput, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range msgOutput.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			var args []byte
			if b.Value.Input != nil {
				var decoded any
				if err := b.Value.Input.UnmarshalSmithyDocument(&decoded); err == nil {
					if encoded, err := json.Marshal(decoded); err == nil {
						args = encoded
					}
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, agent.ToolCallRequest{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	return resp
}

func classifyBedrockError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ThrottlingException"), strings.Contains(msg, "TooManyRequestsException"):
		return apperr.Network(429, 0, err)
	case strings.Contains(msg, "ServiceUnavailableException"):
		return apperr.Network(503, 0, err)
	case strings.Contains(msg, "AccessDeniedException"), strings.Contains(msg, "UnrecognizedClientException"):
		return apperr.Provider(apperr.ProviderAuth, 403, err)
	default:
		return apperr.Provider(apperr.ProviderOther, 0, err)
	}
}
