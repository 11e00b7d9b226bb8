package rules

import (
	"fmt"
	"regexp"

	"github.com/wolfman30/chatrisk/internal/verdict"
)

// Table names used in rule files and error messages.
const (
	TableAgent           = "agent"
	TableCustomerQuality = "customer_quality"
	TableCustomerService = "customer_service"
)

const (
	defaultAgentPenalty           = 50
	defaultCustomerQualityPenalty = 60
	defaultCustomerServicePenalty = 55
	defaultMinCustomerLen         = 2
	defaultApologyThreshold       = 4
	defaultApologyPenalty         = 20
)

// ApologyRule flags conversations where the agent keeps apologizing without
// any other deduction.
type ApologyRule struct {
	Pattern   *regexp.Regexp
	Threshold int
	Penalty   int
	Reason    string
	Text      string
}

// ApologySpec is the uncompiled form of ApologyRule.
type ApologySpec struct {
	Pattern   string `yaml:"pattern"`
	Threshold int    `yaml:"threshold"`
	Penalty   int    `yaml:"penalty"`
	Reason    string `yaml:"reason"`
	Text      string `yaml:"text"`
}

// RuleSet is everything the rule-based classifier needs.
type RuleSet struct {
	Agent           Table
	CustomerQuality Table
	CustomerService Table
	// Snooze phrases are short customer replies that never count as
	// feedback, compared by exact equality.
	Snooze         map[string]struct{}
	MinCustomerLen int
	Apology        ApologyRule
}

// RuleSetSpec is the uncompiled form of a RuleSet. Nil fields keep the
// built-in value when merged with MergeSpec.
type RuleSetSpec struct {
	Agent           *TableSpec   `yaml:"agent"`
	CustomerQuality *TableSpec   `yaml:"customer_quality"`
	CustomerService *TableSpec   `yaml:"customer_service"`
	Snooze          []string     `yaml:"snooze"`
	MinCustomerLen  *int         `yaml:"min_customer_len"`
	Apology         *ApologySpec `yaml:"apology"`
}

// DefaultSpec returns the built-in rule tables.
func DefaultSpec() RuleSetSpec {
	minLen := defaultMinCustomerLen
	return RuleSetSpec{
		Agent: &TableSpec{
			Name:     TableAgent,
			Category: verdict.CategoryAgentMisconduct,
			Penalty:  defaultAgentPenalty,
			Reason:   "命中[{label}]",
			Rules: []RuleSpec{
				{
					Label:    "引导线下/私下交易",
					Triggers: []string{`(加|发|留|转).{0,5}(微信|V|v|QQ|支付宝|私下|转账)`},
					Ignores:  []string{`(优惠券|领券|发货|教程|视频|核实|单号|JD|SF|链接|截图)`},
				},
				{
					Label:    "辱骂/攻击用户",
					Triggers: []string{`(滚|傻(B|b|X|x|逼)|脑子(有病|进水)|眼瞎|去死|神经病|听不懂|弱智)`},
					Ignores:  []string{`(不|别|垃圾袋|垃圾桶|开玩笑)`},
				},
				{
					Label: "直接推诿/不耐烦",
					Triggers: []string{
						`(我|这边).{0,5}(不管|不负责|没法弄|没空)`,
						`(自己).{0,5}(去|找|问).{0,5}(快递|官网)`,
					},
					Ignores: []string{`(建议|可以|麻烦|核实|打包|运输)`},
				},
			},
		},
		CustomerQuality: &TableSpec{
			Name:     TableCustomerQuality,
			Category: verdict.CategoryCustomerQualityComplaint,
			Penalty:  defaultCustomerQualityPenalty,
			Reason:   "疑似品质/故障反馈",
			Rules: []RuleSpec{
				{
					Label:    "品质差评",
					Triggers: []string{`(质量|做工|手感|面料|材质|东西|实物|屏幕|开关|按键|电池|蓝牙|声音|画面).{0,10}(差|烂|硬|薄|粗糙|垃圾|不行|太次|坏|裂|碎|失灵|没反应|不亮|花屏)`},
				},
				{
					Label:    "假货/翻新",
					Triggers: []string{`(假货|旧的|二手的|次品|有人用过|翻新机)`},
				},
				{
					Label:    "故障短句",
					Triggers: []string{`^(坏了|坏的|开不了机|没反应|用不了|打不开|烂了|太差了)$`},
				},
				{
					Label:    "完全不可用",
					Triggers: []string{`(根本|完全|直接).{0,5}(用不了|没法用|坏了)`},
				},
			},
		},
		CustomerService: &TableSpec{
			Name:     TableCustomerService,
			Category: verdict.CategoryCustomerServiceComplaint,
			Penalty:  defaultCustomerServicePenalty,
			Reason:   "疑似[{label}]",
			Rules: []RuleSpec{
				{Label: "信任/诚信投诉", Triggers: []string{`(骗子|骗人|忽悠|欺诈|黑店|垃圾店|没信用|没有信用|抹黑|大企业.*结果|恶心|套路)`}},
				{Label: "威胁投诉/升级", Triggers: []string{`(投诉|举报|315|黑猫|工商|报警|曝光|媒体|差评)`}},
				{Label: "时效/拖延投诉", Triggers: []string{`(超时|太慢|拖延|墨迹|等到什么时候|还没发|几天了)`}},
				{Label: "服务态度投诉", Triggers: []string{`(态度|嘴脸|复读机|机器人).{0,10}(差|不行|恶劣|敷衍)`}},
			},
		},
		Snooze:         []string{"怎么弄", "在吗", "好的", "哦哦", "谢谢", "发货", "什么", "怎么"},
		MinCustomerLen: &minLen,
		Apology: &ApologySpec{
			Pattern:   `(抱歉|对不起|不好意思|谅解)`,
			Threshold: defaultApologyThreshold,
			Penalty:   defaultApologyPenalty,
			Reason:    "客服频繁道歉(>3次)，可能存在处理困难",
			Text:      "(全局检测)",
		},
	}
}

// MergeSpec overlays override onto base. Any table, list or setting present in
// override replaces the base value wholesale.
func MergeSpec(base, override RuleSetSpec) RuleSetSpec {
	out := base
	if override.Agent != nil {
		out.Agent = withTableDefaults(override.Agent, base.Agent)
	}
	if override.CustomerQuality != nil {
		out.CustomerQuality = withTableDefaults(override.CustomerQuality, base.CustomerQuality)
	}
	if override.CustomerService != nil {
		out.CustomerService = withTableDefaults(override.CustomerService, base.CustomerService)
	}
	if override.Snooze != nil {
		out.Snooze = override.Snooze
	}
	if override.MinCustomerLen != nil {
		out.MinCustomerLen = override.MinCustomerLen
	}
	if override.Apology != nil {
		a := *override.Apology
		if base.Apology != nil {
			if a.Pattern == "" {
				a.Pattern = base.Apology.Pattern
			}
			if a.Reason == "" {
				a.Reason = base.Apology.Reason
			}
			if a.Text == "" {
				a.Text = base.Apology.Text
			}
		}
		out.Apology = &a
	}
	return out
}

// withTableDefaults lets a rule file replace a table's rules without having to
// restate its name, category, penalty and reason.
func withTableDefaults(t, base *TableSpec) *TableSpec {
	out := *t
	if base == nil {
		return &out
	}
	if out.Name == "" {
		out.Name = base.Name
	}
	if out.Category == "" {
		out.Category = base.Category
	}
	if out.Penalty == 0 {
		out.Penalty = base.Penalty
	}
	if out.Reason == "" {
		out.Reason = base.Reason
	}
	return &out
}

// Build compiles a complete RuleSetSpec.
func Build(spec RuleSetSpec) (*RuleSet, error) {
	rs := &RuleSet{Snooze: make(map[string]struct{}, len(spec.Snooze))}

	tables := []struct {
		name string
		spec *TableSpec
		dst  *Table
	}{
		{TableAgent, spec.Agent, &rs.Agent},
		{TableCustomerQuality, spec.CustomerQuality, &rs.CustomerQuality},
		{TableCustomerService, spec.CustomerService, &rs.CustomerService},
	}
	for _, t := range tables {
		if t.spec == nil {
			return nil, &ConfigError{Table: t.name, Err: fmt.Errorf("table missing")}
		}
		compiled, err := CompileTable(*t.spec)
		if err != nil {
			return nil, err
		}
		*t.dst = compiled
	}

	for _, s := range spec.Snooze {
		rs.Snooze[s] = struct{}{}
	}

	rs.MinCustomerLen = defaultMinCustomerLen
	if spec.MinCustomerLen != nil {
		if *spec.MinCustomerLen < 0 {
			return nil, &ConfigError{Table: TableCustomerQuality, Label: "min_customer_len", Err: fmt.Errorf("negative length %d", *spec.MinCustomerLen)}
		}
		rs.MinCustomerLen = *spec.MinCustomerLen
	}

	if spec.Apology == nil {
		return nil, &ConfigError{Table: TableAgent, Label: "apology", Err: fmt.Errorf("apology rule missing")}
	}
	a := spec.Apology
	if a.Threshold < 1 || a.Penalty < 0 {
		return nil, &ConfigError{Table: TableAgent, Label: "apology", Err: fmt.Errorf("threshold %d penalty %d out of range", a.Threshold, a.Penalty)}
	}
	re, err := compileFold(a.Pattern)
	if err != nil {
		return nil, &ConfigError{Table: TableAgent, Label: "apology", Pattern: a.Pattern, Err: err}
	}
	rs.Apology = ApologyRule{Pattern: re, Threshold: a.Threshold, Penalty: a.Penalty, Reason: a.Reason, Text: a.Text}
	return rs, nil
}

// DefaultRuleSet compiles the built-in tables. It panics if they are broken,
// which only a code change can cause.
func DefaultRuleSet() *RuleSet {
	rs, err := Build(DefaultSpec())
	if err != nil {
		panic(err)
	}
	return rs
}
