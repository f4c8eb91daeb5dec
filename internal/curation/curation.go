// Package curation は静的な推薦作品リスト（フォールバックタイトル）を管理する。
package curation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/docupicks/internal/model"
)

//go:embed fallback_titles.yaml
var embeddedTitles []byte

// ErrEmptyList はタイトルが1件も定義されていない場合のエラー。
var ErrEmptyList = errors.New("curation: no titles defined")

type titleFile struct {
	Titles []string `yaml:"titles"`
}

// Default は組み込みの推薦作品リストを返す。
func Default() []string {
	titles, err := Parse(embeddedTitles)
	if err != nil {
		panic(fmt.Sprintf("curation: embedded title list is invalid: %v", err))
	}
	return titles
}

// Load はpathのYAMLファイルから推薦作品リストを読み込む。
// pathが空の場合は組み込みのリストを返す。
func Load(path string) ([]string, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("推薦作品リストの読み込みに失敗しました: %w", err)
	}
	return Parse(data)
}

// Parse はYAMLをパースし、空要素と正規化タイトルの重複を取り除いたリストを返す。
// 元の並び順は維持する。
func Parse(data []byte) ([]string, error) {
	var f titleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("推薦作品リストのパースに失敗しました: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Titles))
	titles := make([]string, 0, len(f.Titles))
	for _, t := range f.Titles {
		t = strings.TrimSpace(t)
		key := model.NormalizeTitle(t)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, t)
	}
	if len(titles) == 0 {
		return nil, ErrEmptyList
	}
	return titles, nil
}
