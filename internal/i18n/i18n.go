package i18n

import (
	"fmt"
	"sync"

	"github.com/saikatwtf/Lemon/internal/infra"
	"github.com/saikatwtf/Lemon/resources"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var state = struct {
	mu            sync.Mutex
	translations  map[string]map[string]string
	loaded        map[string]bool
	resourcesPath string
}{
	translations:  make(map[string]map[string]string),
	loaded:        make(map[string]bool),
	resourcesPath: infra.GetResourcesPath("i18n"),
}

func load(lang string) {
	data, err := resources.FS.ReadFile(state.resourcesPath + "/" + fmt.Sprintf("%s.yml", lang))
	if err != nil {
		log.WithError(err).Errorln("cant load i18n")
		state.loaded[lang] = true
		return
	}
	translations := make(map[string]string)
	if err := yaml.Unmarshal(data, &translations); err != nil {
		log.WithError(err).Errorln("cant unmarshal i18n")
		state.loaded[lang] = true
		return
	}
	state.translations[lang] = translations
	state.loaded[lang] = true
}

// IsSupported reports whether a translation file exists for lang.
func IsSupported(lang string) bool {
	if lang == "en" {
		return true
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.loaded[lang] {
		load(lang)
	}
	return len(state.translations[lang]) > 0
}

// Get returns the translation for key, falling back to the key itself.
// English is the source language and needs no lookup.
func Get(key, lang string) string {
	if "en" == lang || lang == "" {
		return key
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.loaded[lang] {
		load(lang)
	}
	if res, ok := state.translations[lang][key]; ok {
		return res
	}
	return key
}
