package rules

type RuleBuilder struct {
	rule Rule
}

func NewRuleBuilder(expires int64) *RuleBuilder {
	return &RuleBuilder{
		rule: Rule{
			Expires:    expires,
			Conditions: make(map[string][]Condition),
		},
	}
}

func (b *RuleBuilder) WithID(id string) *RuleBuilder {
	b.rule.ID = id
	return b
}

// Claim appends conditions to the list for the named claim.
func (b *RuleBuilder) Claim(name string, conds ...Condition) *RuleBuilder {
	b.rule.Conditions[name] = append(b.rule.Conditions[name], conds...)
	return b
}

func (b *RuleBuilder) Issuer(values ...string) *RuleBuilder {
	return b.stringEquals(ClaimIssuer, values)
}

func (b *RuleBuilder) Subject(values ...string) *RuleBuilder {
	return b.stringEquals(ClaimSubject, values)
}

func (b *RuleBuilder) Audience(values ...string) *RuleBuilder {
	return b.stringEquals(ClaimAudience, values)
}

func (b *RuleBuilder) JWTID(values ...string) *RuleBuilder {
	return b.stringEquals(ClaimJWTID, values)
}

// ExpiresAfter matches tokens whose exp claim is after epochSeconds.
func (b *RuleBuilder) ExpiresAfter(epochSeconds int64) *RuleBuilder {
	return b.Claim(ClaimExpires, DateTimeAfter(epochSeconds))
}

// IssuedAfter matches tokens whose iat claim is after epochSeconds.
func (b *RuleBuilder) IssuedAfter(epochSeconds int64) *RuleBuilder {
	return b.Claim(ClaimIssuedAt, DateTimeAfter(epochSeconds))
}

func (b *RuleBuilder) stringEquals(claim string, values []string) *RuleBuilder {
	for _, v := range values {
		b.Claim(claim, StringEquals(v))
	}
	return b
}

func (b *RuleBuilder) Build() Rule {
	rule := b.rule
	conds := make(map[string][]Condition, len(rule.Conditions))
	for name, list := range rule.Conditions {
		conds[name] = append([]Condition(nil), list...)
	}
	rule.Conditions = conds
	return rule
}
