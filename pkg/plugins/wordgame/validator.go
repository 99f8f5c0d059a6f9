package wordgame

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"axiombot/pkg/logger"
	"axiombot/pkg/plugins/pluginkit"
)

// DatamuseURL is the word lookup endpoint.
const DatamuseURL = "https://api.datamuse.com/words"

// Validator checks words against the Datamuse spelling index. Answers are
// cached; when the lookup fails a letters-only check stands in.
type Validator struct {
	Client  *http.Client
	BaseURL string

	log   *logger.Logger
	mu    sync.Mutex
	cache map[string]bool
}

func NewValidator(log *logger.Logger) *Validator {
	return &Validator{
		Client:  pluginkit.DefaultHTTPClient,
		BaseURL: DatamuseURL,
		log:     log.Named("wordgame"),
		cache:   make(map[string]bool),
	}
}

func (v *Validator) Valid(ctx context.Context, word string) bool {
	w := strings.ToLower(strings.TrimSpace(word))
	v.mu.Lock()
	ok, hit := v.cache[w]
	v.mu.Unlock()
	if hit {
		return ok
	}

	ok, err := v.lookup(ctx, w)
	if err != nil {
		v.log.Warn("Word lookup failed, using offline check", zap.String("word", w), zap.Error(err))
		ok = offline(w)
	}
	v.mu.Lock()
	v.cache[w] = ok
	v.mu.Unlock()
	return ok
}

func (v *Validator) lookup(ctx context.Context, w string) (bool, error) {
	data, _, err := pluginkit.Fetch(ctx, v.Client, v.BaseURL+"?sp="+url.QueryEscape(w)+"&max=1")
	if err != nil {
		return false, err
	}
	var hits []struct {
		Word string `json:"word"`
	}
	if err := json.Unmarshal(data, &hits); err != nil {
		return false, err
	}
	return len(hits) > 0 && strings.EqualFold(hits[0].Word, w), nil
}

func offline(w string) bool {
	if len(w) < 2 {
		return false
	}
	for _, r := range w {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
