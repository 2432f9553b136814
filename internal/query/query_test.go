package query

import (
	"testing"
	"time"

	"github.com/graphkeep/graphkeep/internal/entity"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []TokenType
		values   []string
	}{
		{
			name:     "simple equality",
			input:    "status=open",
			expected: []TokenType{TokenIdent, TokenEquals, TokenIdent, TokenEOF},
			values:   []string{"status", "=", "open", ""},
		},
		{
			name:     "not equals",
			input:    "status!=closed",
			expected: []TokenType{TokenIdent, TokenNotEquals, TokenIdent, TokenEOF},
			values:   []string{"status", "!=", "closed", ""},
		},
		{
			name:     "greater than",
			input:    "progress>0.5",
			expected: []TokenType{TokenIdent, TokenGreater, TokenNumber, TokenEOF},
			values:   []string{"progress", ">", "0.5", ""},
		},
		{
			name:     "less than or equal",
			input:    "progress<=0.9",
			expected: []TokenType{TokenIdent, TokenLessEq, TokenNumber, TokenEOF},
			values:   []string{"progress", "<=", "0.9", ""},
		},
		{
			name:     "duration value",
			input:    "updated>7d",
			expected: []TokenType{TokenIdent, TokenGreater, TokenDuration, TokenEOF},
			values:   []string{"updated", ">", "7d", ""},
		},
		{
			name:     "AND expression",
			input:    "status=todo AND progress<1",
			expected: []TokenType{TokenIdent, TokenEquals, TokenIdent, TokenAnd, TokenIdent, TokenLess, TokenNumber, TokenEOF},
			values:   []string{"status", "=", "todo", "AND", "progress", "<", "1", ""},
		},
		{
			name:     "OR expression",
			input:    "status=todo OR status=blocked",
			expected: []TokenType{TokenIdent, TokenEquals, TokenIdent, TokenOr, TokenIdent, TokenEquals, TokenIdent, TokenEOF},
			values:   []string{"status", "=", "todo", "OR", "status", "=", "blocked", ""},
		},
		{
			name:     "NOT expression",
			input:    "NOT status=done",
			expected: []TokenType{TokenNot, TokenIdent, TokenEquals, TokenIdent, TokenEOF},
			values:   []string{"NOT", "status", "=", "done", ""},
		},
		{
			name:     "parentheses",
			input:    "(status=todo)",
			expected: []TokenType{TokenLParen, TokenIdent, TokenEquals, TokenIdent, TokenRParen, TokenEOF},
			values:   []string{"(", "status", "=", "todo", ")", ""},
		},
		{
			name:     "quoted string",
			input:    `name="hello world"`,
			expected: []TokenType{TokenIdent, TokenEquals, TokenString, TokenEOF},
			values:   []string{"name", "=", "hello world", ""},
		},
		{
			name:     "case insensitive keywords",
			input:    "status=todo and progress<1 or status=done",
			expected: []TokenType{TokenIdent, TokenEquals, TokenIdent, TokenAnd, TokenIdent, TokenLess, TokenNumber, TokenOr, TokenIdent, TokenEquals, TokenIdent, TokenEOF},
		},
		{
			name:     "identifier with hyphen",
			input:    "id=tsk-abc123",
			expected: []TokenType{TokenIdent, TokenEquals, TokenIdent, TokenEOF},
			values:   []string{"id", "=", "tsk-abc123", ""},
		},
		{
			name:     "identifier with underscore",
			input:    "metadata.owner_team=core",
			expected: []TokenType{TokenIdent, TokenEquals, TokenIdent, TokenEOF},
			values:   []string{"metadata.owner_team", "=", "core", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			tokens, err := lexer.Tokenize()
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("got %d tokens, want %d", len(tokens), len(tt.expected))
			}

			for i, tok := range tokens {
				if tok.Type != tt.expected[i] {
					t.Errorf("token %d: got type %v, want %v", i, tok.Type, tt.expected[i])
				}
				if tt.values != nil && tok.Value != tt.values[i] {
					t.Errorf("token %d: got value %q, want %q", i, tok.Value, tt.values[i])
				}
			}
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", `name="hello`},
		{"invalid character", "status@todo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			_, err := lexer.Tokenize()
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParser(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple comparison",
			input:    "status=todo",
			expected: "status=todo",
		},
		{
			name:     "AND expression",
			input:    "status=todo AND progress<1",
			expected: "(status=todo AND progress<1)",
		},
		{
			name:     "OR expression",
			input:    "status=todo OR status=blocked",
			expected: "(status=todo OR status=blocked)",
		},
		{
			name:     "NOT expression",
			input:    "NOT status=done",
			expected: "NOT status=done",
		},
		{
			name:     "parentheses",
			input:    "(status=todo OR status=blocked) AND progress<0.5",
			expected: "((status=todo OR status=blocked) AND progress<0.5)",
		},
		{
			name:     "chained AND",
			input:    "status=todo AND progress<1 AND codebase=core",
			expected: "((status=todo AND progress<1) AND codebase=core)",
		},
		{
			name:     "AND has higher precedence than OR",
			input:    "status=todo OR progress<1 AND codebase=core",
			expected: "(status=todo OR (progress<1 AND codebase=core))",
		},
		{
			name:     "NOT with parentheses",
			input:    "NOT (status=done OR status=cancelled)",
			expected: "NOT (status=done OR status=cancelled)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			got := node.String()
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty query", ""},
		{"missing value", "status="},
		{"missing operator", "status todo"},
		{"unclosed paren", "(status=todo"},
		{"extra paren", "status=todo)"},
		{"missing operand after AND", "status=todo AND"},
		{"invalid operator", "status~todo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestPredicateEvaluation(t *testing.T) {
	now := time.Date(2025, 2, 4, 12, 0, 0, 0, time.UTC)

	todoTask := &entity.Task{
		ID:                  "tsk-1",
		Name:                "wire up broker",
		Status:              entity.StatusTODO,
		Progress:            0,
		Codebase:            "core",
		RelatedComponentIDs: []string{"cmp-1"},
	}

	doneTask := &entity.Task{
		ID:       "tsk-2",
		Name:     "ship snapshot engine",
		Status:   entity.StatusDone,
		Progress: 1,
		Codebase: "core",
	}

	blockedTask := &entity.Task{
		ID:       "tsk-3",
		Name:     "dolt migration",
		Status:   entity.StatusBlocked,
		Progress: 0.4,
		Codebase: "infra",
	}

	tests := []struct {
		name    string
		query   string
		task    *entity.Task
		matches bool
	}{
		{"status=todo matches todo", "status=TODO", todoTask, true},
		{"status=todo doesn't match done", "status=TODO", doneTask, false},
		{"status!=done matches todo", "status!=DONE", todoTask, true},
		{"status!=done doesn't match done", "status!=DONE", doneTask, false},

		{"progress<1 matches todo", "progress<1", todoTask, true},
		{"progress<1 doesn't match done", "progress<1", doneTask, false},
		{"progress>=0.4 matches blocked", "progress>=0.4", blockedTask, true},

		{"name contains substring", `name="broker"`, todoTask, true},
		{"name substring doesn't match", `name="broker"`, doneTask, false},

		{"component matches related id", "component=cmp-1", todoTask, true},
		{"component doesn't match unrelated", "component=cmp-1", doneTask, false},

		{"OR across status", "status=TODO OR status=BLOCKED", todoTask, true},
		{"OR across status matches blocked", "status=TODO OR status=BLOCKED", blockedTask, true},
		{"OR across status excludes done", "status=TODO OR status=BLOCKED", doneTask, false},

		{"AND combination matches", "status=TODO AND codebase=core", todoTask, true},
		{"AND combination excludes mismatched codebase", "status=TODO AND codebase=core", blockedTask, false},

		{"NOT excludes done", "NOT status=DONE", todoTask, true},
		{"NOT excludes todo when matching done", "NOT status=DONE", doneTask, false},

		{"parenthesized OR with AND", "(status=TODO OR status=BLOCKED) AND progress<0.5", todoTask, true},
		{"parenthesized OR with AND matches blocked", "(status=TODO OR status=BLOCKED) AND progress<0.5", blockedTask, true},
		{"parenthesized OR with AND excludes done", "(status=TODO OR status=BLOCKED) AND progress<0.5", doneTask, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := EvaluateAt(tt.query, now)
			if err != nil {
				t.Fatalf("EvaluateAt() error = %v", err)
			}
			got := pred(tt.task)
			if got != tt.matches {
				t.Errorf("predicate(%s) = %v, want %v", tt.task.ID, got, tt.matches)
			}
		})
	}
}

func TestEvaluatorErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"invalid progress", "progress=abc"},
		{"unknown field", "unknown=value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.query)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
