package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentFilter(t *testing.T) {
	f := NewContentFilter()

	tests := []struct {
		text string
		msg  string
	}{
		{"Streetlight out since Monday", ""},
		{"Water everywhere!!", ""},
		{"What a SCAM this repair was", "Body contains inappropriate language"},
		{"Scammers everywhere", ""},
		{"Nooooooo more potholes", "Body appears to be spam"},
		{"Why?????? again", "Body appears to be spam"},
		{"PLEASE REPAIR THESE BROKEN LIGHTS", "Body uses excessive capital letters"},
		{"NASA and UNICEF and OSHA", ""},
	}
	for _, tt := range tests {
		err := f.Check("Body", tt.text)
		if tt.msg == "" {
			assert.NoError(t, err, tt.text)
			continue
		}
		if assert.Error(t, err, tt.text) {
			assert.Equal(t, tt.msg, err.Error())
			assert.ErrorIs(t, err, ErrInvalidArgument)
		}
	}
}
