package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatrisk/internal/transcript"
	"github.com/wolfman30/chatrisk/internal/verdict"
)

func agent(text string) transcript.Utterance {
	return transcript.Utterance{Sender: transcript.SenderAgent, Text: text}
}

func customer(text string) transcript.Utterance {
	return transcript.Utterance{Sender: transcript.SenderCustomer, Text: text}
}

func TestMatcher_MatchAgent(t *testing.T) {
	m := NewMatcher(nil, nil)

	tests := []struct {
		name       string
		text       string
		wantOK     bool
		wantReason string
	}{
		{"off-platform solicitation", "你加我微信，私聊", true, "命中[引导线下/私下交易]"},
		{"case-insensitive trigger", "加个qq吧", true, "命中[引导线下/私下交易]"},
		{"coupon context is ignored", "加微信领优惠券", false, ""},
		{"ignored rule falls through to the next", "发链接加微信，你脑子进水了", true, "命中[辱骂/攻击用户]"},
		{"first rule wins over later ones", "加我微信，你是弱智吗", true, "命中[引导线下/私下交易]"},
		{"stonewalling", "这边不负责的", true, "命中[直接推诿/不耐烦]"},
		{"stonewalling with softener is ignored", "建议您自己去问快递", false, ""},
		{"polite reply", "好的，马上为您处理", false, ""},
		{"empty", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := m.MatchAgent(agent(tt.text))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.NotNil(t, match)
			assert.Equal(t, tt.wantReason, match.Reason)
			assert.Equal(t, verdict.CategoryAgentMisconduct, match.Category)
			assert.Equal(t, 50, match.Penalty)
		})
	}
}

func TestMatcher_MatchCustomer(t *testing.T) {
	m := NewMatcher(nil, nil)

	tests := []struct {
		name         string
		text         string
		wantOK       bool
		wantCategory verdict.Category
		wantReason   string
	}{
		{"snooze phrase", "在吗", false, "", ""},
		{"snooze is exact equality", "好的质量太差了", true, verdict.CategoryCustomerQualityComplaint, "疑似品质/故障反馈"},
		{"below minimum length", "坏", false, "", ""},
		{"short fault report", "坏了", true, verdict.CategoryCustomerQualityComplaint, "疑似品质/故障反馈"},
		{"quality complaint", "屏幕有点花屏", true, verdict.CategoryCustomerQualityComplaint, "疑似品质/故障反馈"},
		{"quality checked before service", "屏幕坏了我要投诉", true, verdict.CategoryCustomerQualityComplaint, "疑似品质/故障反馈"},
		{"trust complaint", "你们就是骗子", true, verdict.CategoryCustomerServiceComplaint, "疑似[信任/诚信投诉]"},
		{"escalation threat", "再不处理我就去12315投诉", true, verdict.CategoryCustomerServiceComplaint, "疑似[威胁投诉/升级]"},
		{"delay complaint", "都几天了还没发", true, verdict.CategoryCustomerServiceComplaint, "疑似[时效/拖延投诉]"},
		{"neutral question", "请问什么时候到货", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, ok := m.MatchCustomer(customer(tt.text))
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantCategory, match.Category)
			assert.Equal(t, tt.wantReason, match.Reason)
		})
	}
}

func TestMatcher_Evaluate(t *testing.T) {
	m := NewMatcher(nil, nil)
	ctx := context.Background()

	_, ok := m.Evaluate(ctx, transcript.Utterance{Sender: transcript.SenderSystem, Text: "你们就是骗子"})
	assert.False(t, ok, "system utterances are never evaluated")

	match, ok := m.Evaluate(ctx, customer("你们就是骗子"))
	require.True(t, ok)
	cp := match.Checkpoint()
	assert.Equal(t, verdict.Checkpoint{
		Point:  55,
		Type:   verdict.CategoryCustomerServiceComplaint,
		Reason: "疑似[信任/诚信投诉]",
		Text:   "你们就是骗子",
	}, cp)
}

func TestMatcher_IsApology(t *testing.T) {
	m := NewMatcher(nil, nil)
	assert.True(t, m.IsApology("不好意思让您久等了"))
	assert.True(t, m.IsApology("非常抱歉"))
	assert.False(t, m.IsApology("好的"))
}
