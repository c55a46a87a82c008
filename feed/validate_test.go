package feed_test

import (
	"strings"
	"testing"

	"github.com/nasermirzaei89/karma/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommentContent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		rule    string
	}{
		{name: "plain", content: "nice post"},
		{name: "exactly at limit in code points", content: strings.Repeat("é", feed.MaxCommentLength)},
		{name: "empty", content: "", rule: "notblank"},
		{name: "whitespace only", content: "  \n\t ", rule: "notblank"},
		{name: "too long", content: strings.Repeat("a", feed.MaxCommentLength+1), rule: "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := feed.ValidateCommentContent(tt.content)
			if tt.rule == "" {
				require.NoError(t, err)

				return
			}

			validationErr := &feed.ValidationError{}
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.rule, validationErr.Rule)
			assert.Equal(t, "comment", validationErr.Field)
		})
	}
}

func TestValidatePostContent(t *testing.T) {
	t.Parallel()

	require.NoError(t, feed.ValidatePostContent(strings.Repeat("a", feed.MaxPostLength)))

	err := feed.ValidatePostContent(strings.Repeat("a", feed.MaxPostLength+1))
	validationErr := &feed.ValidationError{}
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "5000", validationErr.Limit)
	assert.Equal(t, "post cannot be longer than 5000 characters", validationErr.Error())

	assert.True(t, feed.IsBlank(" \t"))
}
