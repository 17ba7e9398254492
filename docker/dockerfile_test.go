package docker

import (
	"fmt"
	"testing"

	"github.com/juls0730/fluxops/models"
	"github.com/stretchr/testify/assert"
)

func TestGenerateDockerfile(t *testing.T) {
	tests := []struct {
		framework string
		contains  []string
		absent    []string
	}{
		{"Laravel", []string{"FROM php:8.2-fpm", "composer install --no-dev", "php artisan config:cache", "EXPOSE 80", "supervisord"}, nil},
		{"Symfony", []string{"FROM php:8.2-fpm", "EXPOSE 80"}, []string{"artisan"}},
		{"Next.js", []string{"FROM node:20-alpine", "npm run build --if-present", "EXPOSE 3000", `CMD ["npm", "start"]`}, []string{"nginx"}},
		{"React", []string{"AS build", "FROM nginx:alpine", "listen 3000;", "EXPOSE 3000"}, nil},
		{"Vue", []string{"AS build", "FROM nginx:alpine"}, nil},
		{"Rails", []string{"FROM nginx:alpine", "EXPOSE 80"}, []string{"AS build"}},
		{"", []string{"FROM nginx:alpine"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.framework, func(t *testing.T) {
			dockerfile := GenerateDockerfile(models.Project{Framework: tt.framework})
			for _, s := range tt.contains {
				assert.Contains(t, dockerfile, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, dockerfile, s)
			}
		})
	}
}

func TestGeneratedDockerfilePortMatchesContainerPort(t *testing.T) {
	for _, framework := range []string{"Laravel", "CodeIgniter", "Node.js", "Nuxt.js", "React", "Vue", "Angular", "Django"} {
		t.Run(framework, func(t *testing.T) {
			port := models.ContainerPort(framework)
			assert.Contains(t, GenerateDockerfile(models.Project{Framework: framework}), fmt.Sprintf("EXPOSE %d", port))
		})
	}
}
