package scanner

// Family groups sub-categories of keywords that share a severity rule
type Family string

const (
	FamilyChurn      Family = "churn"
	FamilyPositive   Family = "positive"
	FamilyAction     Family = "action"
	FamilyCompliance Family = "compliance"
)

type category struct {
	name     string
	keywords []string
}

// Categories are slices rather than maps so matches come out in a stable order.

var churnLexicon = []category{
	{"critical", []string{
		"cancel", "cancellation", "cancelling", "terminate", "termination",
		"not renewing", "won't renew", "reconsidering",
		"take our business elsewhere", "looking at competitors",
		"exploring options", "evaluating alternatives",
		"end the contract", "exit", "off-board", "wind down",
		"rfp for replacement", "vendor review",
	}},
	{"high", []string{
		// frustration
		"frustrated", "frustrating", "disappointed", "disappointing",
		"unacceptable", "fed up", "at wit's end", "last straw",
		"deal breaker", "non-starter",
		// escalation
		"escalate", "escalation", "involve my manager", "loop in vp",
		"bring in legal", "c-suite", "executive sponsor",
		"unresolved", "still waiting", "no response", "ignored",
		"dropped the ball", "this is the third time", "yet again",
	}},
	{"medium", []string{
		// service issues
		"slow response", "long wait", "no follow-up", "ticket still open",
		"support is terrible", "can't get help", "nobody responds",
		"passed around", "transferred again", "sla breach",
		"outage", "downtime", "incident", "service disruption",
		// product gaps
		"missing feature", "doesn't have", "can't do", "limitation",
		"workaround", "competitor has", "why can't you",
		"not intuitive", "confusing", "hard to use", "clunky", "buggy",
	}},
}

var positiveLexicon = []category{
	{"expansion", []string{
		"expand", "expansion", "add more", "additional licenses",
		"more seats", "other departments", "other teams",
		"roll out to", "enterprise-wide", "new use case",
		"another project", "phase 2", "next phase",
		"budget approved", "funding secured", "ready to move forward",
		"who else should i talk to", "introduce you to",
	}},
	{"satisfaction", []string{
		"love", "great", "excellent", "fantastic", "amazing", "impressed",
		"happy with", "pleased with", "satisfied", "delighted",
		"exceeded expectations", "better than expected", "blown away",
		"exactly what we needed", "perfect fit", "game changer",
	}},
	{"relationship", []string{
		"partner", "partnership", "strategic", "long-term", "trusted",
		"recommend", "referral", "reference", "case study", "testimonial",
		"renew", "renewal", "multi-year", "extend", "committed",
		"advocate", "champion",
	}},
	{"value", []string{
		"roi", "return on investment", "paying off", "saving us",
		"efficiency", "productivity", "streamlined", "automated",
		"results", "outcomes", "impact", "measurable", "metrics",
		"success", "successful", "working well", "performing",
	}},
}

var actionLexicon = []category{
	{"commitments_made", []string{
		"i'll send", "i'll get back", "will follow up", "let me check",
		"by end of week", "by friday", "tomorrow", "next week",
		"circle back", "reconnect", "touch base", "schedule time",
	}},
	{"requests_pending", []string{
		"can you send", "please provide", "need from you", "waiting on",
		"awaiting", "pending your", "action required", "your turn",
		"please confirm", "need approval", "sign off needed",
	}},
	{"meeting_signals", []string{
		"let's schedule", "set up a call", "discuss further",
		"qbr", "business review", "check-in", "sync",
		"demo", "presentation", "walk-through", "deep dive",
	}},
}

var complianceLexicon = []category{
	{"fedramp", []string{"fedramp", "fed ramp", "federal risk"}},
	{"fisma", []string{"fisma", "federal information security"}},
	{"ato", []string{"ato", "authorization to operate", "authority to operate"}},
	{"hipaa", []string{"hipaa", "phi", "protected health information"}},
	{"section_508", []string{"508 compliance", "section 508", "accessibility", "wcag"}},
	{"security", []string{
		"security review", "security assessment", "pen test",
		"penetration test", "vulnerability", "il4", "il5",
		"govcloud", "government cloud",
	}},
	{"federal_process", []string{
		"contracting officer", "cor", "cotr", "procurement",
		"task order", "bpa", "idiq", "option year",
		"period of performance", "clin", "gsa schedule",
	}},
}
