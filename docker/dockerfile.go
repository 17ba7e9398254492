package docker

import (
	"strings"

	"github.com/juls0730/fluxops/models"
)

// GenerateDockerfile renders a Dockerfile for projects that ship without
// one. The template is picked by framework family.
func GenerateDockerfile(project models.Project) string {
	switch models.FamilyOf(project.Framework) {
	case models.FamilyPHP:
		return renderPHPDockerfile(strings.EqualFold(project.Framework, "laravel"))
	case models.FamilyNode:
		return renderNodeDockerfile()
	case models.FamilySPA:
		return renderStaticDockerfile()
	default:
		return renderGenericDockerfile()
	}
}

func renderPHPDockerfile(laravel bool) string {
	var b strings.Builder
	b.WriteString("FROM php:8.2-fpm\n\n")
	b.WriteString("RUN apt-get update && apt-get install -y --no-install-recommends \\\n")
	b.WriteString("    git curl zip unzip nginx supervisor \\\n")
	b.WriteString("    libpng-dev libonig-dev libxml2-dev libzip-dev \\\n")
	b.WriteString("    && docker-php-ext-install pdo_mysql mbstring exif pcntl bcmath gd zip opcache \\\n")
	b.WriteString("    && apt-get clean && rm -rf /var/lib/apt/lists/*\n\n")
	b.WriteString("COPY --from=composer:2 /usr/bin/composer /usr/bin/composer\n\n")
	b.WriteString("WORKDIR /var/www/html\n")
	b.WriteString("COPY . .\n\n")
	b.WriteString("RUN composer install --no-dev --optimize-autoloader --no-interaction\n")
	if laravel {
		b.WriteString("RUN php artisan config:cache && php artisan route:cache && php artisan view:cache\n")
	}
	b.WriteString("RUN chown -R www-data:www-data /var/www/html\n\n")
	b.WriteString(`RUN printf 'server {\n    listen 80;\n    root /var/www/html/public;\n    index index.php index.html;\n    location / {\n        try_files $uri $uri/ /index.php?$query_string;\n    }\n    location ~ \\.php$ {\n        fastcgi_pass 127.0.0.1:9000;\n        fastcgi_param SCRIPT_FILENAME $realpath_root$fastcgi_script_name;\n        include fastcgi_params;\n    }\n}\n' > /etc/nginx/sites-available/default` + "\n")
	b.WriteString(`RUN printf '[supervisord]\nnodaemon=true\n\n[program:php-fpm]\ncommand=php-fpm -F\nautorestart=true\n\n[program:nginx]\ncommand=nginx -g "daemon off;"\nautorestart=true\n' > /etc/supervisor/conf.d/app.conf` + "\n\n")
	b.WriteString("EXPOSE 80\n")
	b.WriteString("CMD [\"/usr/bin/supervisord\", \"-c\", \"/etc/supervisor/supervisord.conf\"]\n")
	return b.String()
}

func renderNodeDockerfile() string {
	var b strings.Builder
	b.WriteString("FROM node:20-alpine\n")
	b.WriteString("WORKDIR /app\n\n")
	b.WriteString("COPY package*.json ./\n")
	b.WriteString("RUN if [ -f package-lock.json ]; then npm ci; else npm install; fi\n\n")
	b.WriteString("COPY . .\n")
	b.WriteString("RUN npm run build --if-present\n\n")
	b.WriteString("ENV NODE_ENV=production\n")
	b.WriteString("ENV PORT=3000\n")
	b.WriteString("EXPOSE 3000\n")
	b.WriteString("CMD [\"npm\", \"start\"]\n")
	return b.String()
}

// renderStaticDockerfile builds an SPA and serves the bundle with nginx on
// the same port Node-family containers use.
func renderStaticDockerfile() string {
	var b strings.Builder
	b.WriteString("FROM node:20-alpine AS build\n")
	b.WriteString("WORKDIR /app\n\n")
	b.WriteString("COPY package*.json ./\n")
	b.WriteString("RUN if [ -f package-lock.json ]; then npm ci; else npm install; fi\n\n")
	b.WriteString("COPY . .\n")
	b.WriteString("RUN npm run build\n")
	b.WriteString("RUN mkdir -p /out && if [ -d dist ]; then cp -r dist/. /out/; else cp -r build/. /out/; fi\n\n")
	b.WriteString("FROM nginx:alpine\n")
	b.WriteString("COPY --from=build /out /usr/share/nginx/html\n")
	b.WriteString(`RUN printf 'server {\n    listen 3000;\n    root /usr/share/nginx/html;\n    index index.html;\n    location / {\n        try_files $uri $uri/ /index.html;\n    }\n}\n' > /etc/nginx/conf.d/default.conf` + "\n\n")
	b.WriteString("EXPOSE 3000\n")
	b.WriteString("CMD [\"nginx\", \"-g\", \"daemon off;\"]\n")
	return b.String()
}

func renderGenericDockerfile() string {
	var b strings.Builder
	b.WriteString("FROM nginx:alpine\n")
	b.WriteString("COPY . /usr/share/nginx/html\n")
	b.WriteString("EXPOSE 80\n")
	b.WriteString("CMD [\"nginx\", \"-g\", \"daemon off;\"]\n")
	return b.String()
}
