package logging

import "testing"

func TestMaskSensitiveValue(t *testing.T) {
	tests := []struct {
		name      string
		fieldName string
		value     string
		expected  string
	}{
		{
			name:      "password field",
			fieldName: "password",
			value:     "hunter2hunter2",
			expected:  MaskedValue,
		},
		{
			name:      "smtp password",
			fieldName: "smtp_password",
			value:     "mailpass",
			expected:  MaskedValue,
		},
		{
			name:      "routing key",
			fieldName: "routing_key",
			value:     "R0123456789ABCDEF",
			expected:  MaskedValue,
		},
		{
			name:      "field containing keyword",
			fieldName: "slack_webhook_url",
			value:     "https://hooks.example.com/T000/B000",
			expected:  MaskedValue,
		},
		{
			name:      "benign field",
			fieldName: "bucket",
			value:     "compliance-evidence-archive",
			expected:  "compliance-evidence-archive",
		},
		{
			name:      "empty value",
			fieldName: "password",
			value:     "",
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskSensitiveValue(tt.fieldName, tt.value)
			if got != tt.expected {
				t.Errorf("MaskSensitiveValue(%q, %q) = %q, want %q",
					tt.fieldName, tt.value, got, tt.expected)
			}
		})
	}
}

func TestIsSensitiveField(t *testing.T) {
	if !IsSensitiveField("API_TOKEN") {
		t.Error("expected API_TOKEN to be sensitive")
	}
	if !IsSensitiveField("aws_secret_access_key") {
		t.Error("expected aws_secret_access_key to be sensitive")
	}
	if IsSensitiveField("asset_identifier") {
		t.Error("expected asset_identifier to not be sensitive")
	}
}

func TestMaskString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		showFirst int
		showLast  int
		expected  string
	}{
		{
			name:      "long value keeps edges",
			input:     "abcdefghijklmnop",
			showFirst: 4,
			showLast:  4,
			expected:  "abcd***mnop",
		},
		{
			name:      "short value fully masked",
			input:     "abcd",
			showFirst: 2,
			showLast:  2,
			expected:  MaskedValue,
		},
		{
			name:      "empty value",
			input:     "",
			showFirst: 2,
			showLast:  2,
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskString(tt.input, tt.showFirst, tt.showLast)
			if got != tt.expected {
				t.Errorf("MaskString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
