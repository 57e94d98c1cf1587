package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"msgapp/internal/chatsync"
	"msgapp/internal/config"
	"msgapp/internal/domain"
	"msgapp/internal/identity"
	"msgapp/internal/notify"
	"msgapp/internal/store"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.LogFile)
	defer logger.Sync()

	st, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	resolver := identity.NewResolver(identity.NewHTTPProvider(cfg.AuthBaseURL), logger)
	id := resolver.Resolve(ctx)
	fmt.Printf("Conectado como %s\n", id.DisplayName)

	// Permiso de notificación: se decide una vez al arrancar; denegado
	// significa suprimir en silencio.
	var notifier notify.Notifier = notify.NewDisabledNotifier()
	if cfg.NotifyEnabled {
		notifier = notify.NewDesktopNotifier(logger)
	}

	directory := chatsync.NewDirectory(st, logger)
	if err := directory.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer directory.Close()

	feed := chatsync.NewFeed(st, notifier, id.UserID, logger)

	// Navegación: una sola sala activa en memoria, o ninguna.
	for {
		room, ok := roomListScreen(ctx, reader, directory)
		if !ok {
			return
		}
		if err := feed.SwitchRoom(ctx, room.ID); err != nil {
			logger.Warn("switch room failed", zap.String("room_id", room.ID), zap.Error(err))
			continue
		}
		chatScreen(ctx, reader, feed, id, room)
		feed.Leave()
	}
}

// roomListScreen lista las salas, filtra por búsqueda y ofrece crear y
// excluir. Devuelve la sala elegida, o ok=false para salir.
func roomListScreen(ctx context.Context, reader *bufio.Reader, directory *chatsync.Directory) (domain.Room, bool) {
	searchQuery := ""
	for {
		// drena actualizaciones pendientes para pintar lo más reciente
		for {
			select {
			case <-directory.Updates():
				continue
			default:
			}
			break
		}
		rooms := directory.Rooms()
		filtered := filterRooms(rooms, searchQuery)

		fmt.Println("\n===== Salas de Bate-papo =====")
		if searchQuery != "" {
			fmt.Printf("(filtro: %q)\n", searchQuery)
		}
		if len(filtered) == 0 {
			fmt.Println("Nenhuma sala.")
		}
		for i, room := range filtered {
			fmt.Printf("[%d] %s\n", i+1, room.Name)
		}
		fmt.Println("[C] Criar nova sala  [X] Excluir sala  [P] Pesquisar  [R] Atualizar  [S] Sair")
		fmt.Print("Selecione: ")

		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)
		switch {
		case strings.EqualFold(choice, "C"):
			fmt.Print("Nome da sala: ")
			name, _ := reader.ReadString('\n')
			directory.Create(ctx, strings.TrimSpace(name))
			time.Sleep(200 * time.Millisecond)
		case strings.EqualFold(choice, "X"):
			if room, ok := pickRoom(reader, filtered, "Excluir qual sala? "); ok {
				directory.Delete(ctx, room.ID)
				time.Sleep(200 * time.Millisecond)
			}
		case strings.EqualFold(choice, "P"):
			fmt.Print("Pesquisar sala: ")
			q, _ := reader.ReadString('\n')
			searchQuery = strings.TrimSpace(q)
		case strings.EqualFold(choice, "R"):
			continue
		case strings.EqualFold(choice, "S"):
			return domain.Room{}, false
		default:
			idx, err := strconv.Atoi(choice)
			if err != nil || idx < 1 || idx > len(filtered) {
				fmt.Println("Seleção inválida.")
				continue
			}
			return filtered[idx-1], true
		}
	}
}

func filterRooms(rooms []domain.Room, query string) []domain.Room {
	if query == "" {
		return rooms
	}
	out := make([]domain.Room, 0, len(rooms))
	for _, room := range rooms {
		if strings.Contains(strings.ToLower(room.Name), strings.ToLower(query)) {
			out = append(out, room)
		}
	}
	return out
}

func pickRoom(reader *bufio.Reader, rooms []domain.Room, prompt string) (domain.Room, bool) {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || idx < 1 || idx > len(rooms) {
		fmt.Println("Seleção inválida.")
		return domain.Room{}, false
	}
	return rooms[idx-1], true
}

// chatScreen imprime los mensajes entrantes según llegan y lee líneas
// para enviar. "/sair" vuelve a la lista de salas.
func chatScreen(ctx context.Context, reader *bufio.Reader, feed *chatsync.Feed, id domain.Identity, room domain.Room) {
	fmt.Printf("\n===== %s ===== (escreva /sair para voltar)\n", room.Name)

	done := make(chan struct{})
	go func() {
		printed := 0
		for {
			select {
			case <-done:
				return
			case msgs, ok := <-feed.Updates():
				if !ok {
					return
				}
				if len(msgs) < printed {
					printed = 0
				}
				for _, msg := range msgs[printed:] {
					printMessage(msg, id.UserID)
				}
				printed = len(msgs)
			}
		}
	}()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "/sair") {
			break
		}
		// el campo de entrada se limpia al enviar, pase lo que pase con
		// la escritura remota
		feed.Send(ctx, id.UserID, id.DisplayName, text)
	}
	close(done)
}

func printMessage(msg domain.Message, localUserID string) {
	when := time.UnixMilli(msg.Timestamp).Format("15:04")
	name := msg.SenderName
	if msg.SenderID == localUserID {
		name = "Você"
	}
	fmt.Printf("[%s] %s: %s\n", when, name, msg.Text)
}

// newLogger escribe a archivo para no ensuciar la pantalla del chat;
// sin archivo configurado, descarta.
func newLogger(path string) *zap.Logger {
	if path == "" {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// newStore arma el backend elegido por configuración.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return store.NewRedisStore(client, logger), func() { client.Close() }, nil
	case "postgres":
		pool, err := store.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("pg connect: %w", err)
		}
		st, err := store.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pg schema: %w", err)
		}
		return st, func() { pool.Close() }, nil
	default:
		ms := store.NewMemoryStore()
		return ms, func() { ms.Close() }, nil
	}
}
