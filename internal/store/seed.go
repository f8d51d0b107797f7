package store

import (
	"context"
	"os"

	"github.com/goccy/go-yaml"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seed 启动时导入的目录数据
type Seed struct {
	Users []SeedUser `yaml:"users"`
	Rooms []SeedRoom `yaml:"rooms"`
}

type SeedUser struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Image string `yaml:"image"`
}

type SeedRoom struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	CreatedBy   string   `yaml:"createdBy"`
	Members     []string `yaml:"members"`
}

// LoadSeed 读取 YAML 种子文件，未知字段视为错误
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrSeed.WithError(err)
	}
	return ParseSeed(data)
}

// ParseSeed 解析 YAML 种子数据
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.UnmarshalWithOptions(data, &seed, yaml.Strict()); err != nil {
		return nil, ErrSeed.WithError(err)
	}
	for _, u := range seed.Users {
		if u.ID == "" || u.Name == "" {
			return nil, ErrSeed.WithMessage("seed: user id and name are required")
		}
	}
	for _, r := range seed.Rooms {
		if r.ID == "" || r.Name == "" || r.CreatedBy == "" {
			return nil, ErrSeed.WithMessage("seed: room id, name and createdBy are required")
		}
	}
	return &seed, nil
}

// ApplySeed 幂等导入：用户和房间按 ID 覆盖，成员关系只增不减
func (r *Repository) ApplySeed(ctx context.Context, seed *Seed) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := clause.OnConflict{UpdateAll: true}
		for _, su := range seed.Users {
			u := User{ID: su.ID, Name: su.Name, Email: su.Email, Image: su.Image}
			if err := tx.Clauses(upsert).Create(&u).Error; err != nil {
				return ErrSeed.WithError(err)
			}
		}
		for _, sr := range seed.Rooms {
			room := Room{ID: sr.ID, Name: sr.Name, Description: sr.Description, CreatedBy: sr.CreatedBy}
			if err := tx.Clauses(upsert).Omit("Members").Create(&room).Error; err != nil {
				return ErrSeed.WithError(err)
			}
			members := uniq(append([]string{sr.CreatedBy}, sr.Members...))
			if err := r.requireUsers(tx, members); err != nil {
				return ErrSeed.WithError(err)
			}
			if err := addMembers(tx, sr.ID, members); err != nil {
				return ErrSeed.WithError(err)
			}
		}
		return nil
	})
}
