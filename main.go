package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/saikatwtf/Lemon/internal/bot"
	"github.com/saikatwtf/Lemon/internal/config"
	"github.com/saikatwtf/Lemon/internal/db/sqlite"
	"github.com/saikatwtf/Lemon/internal/event"
	"github.com/saikatwtf/Lemon/internal/handlers/chat"
	"github.com/saikatwtf/Lemon/internal/handlers/federation"
	"github.com/saikatwtf/Lemon/internal/handlers/moderation"
	"github.com/saikatwtf/Lemon/internal/infra"
	"github.com/saikatwtf/Lemon/internal/infrastructure/telegram"
	"github.com/saikatwtf/Lemon/internal/lifecycle"
	"github.com/saikatwtf/Lemon/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatalln("cant load config")
	}
	log.SetFormatter(&config.LmFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		log.WithError(err).Fatalln("cant init observability")
	}
	defer event.RunWorker()()

	infra.GoRecoverable(5, "update_loop", func() {
		botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			log.WithError(err).Errorln("cant initialize bot api")
			time.Sleep(1 * time.Second)
			log.Fatalln("exiting")
		}
		if log.Level(cfg.LogLevel) == log.TraceLevel {
			botAPI.Debug = true
		}
		defer botAPI.StopReceivingUpdates()

		if err := os.MkdirAll(cfg.DotPath, 0o755); err != nil {
			log.WithError(err).Fatalln("cant create work dir")
		}
		client, err := sqlite.NewSQLiteClient(ctx, cfg.DotPath, "lemon.db")
		if err != nil {
			log.WithError(err).Fatalln("cant open database")
		}
		defer func() { _ = client.Close() }()

		service := bot.NewService(botAPI, client)

		gatekeeper := chat.NewGatekeeper(service)
		mod := moderation.NewModeration(service)
		bot.RegisterUpdateHandler("gatekeeper", gatekeeper)
		bot.RegisterUpdateHandler("federation", federation.NewFederation(service))
		bot.RegisterUpdateHandler("moderation", mod)
		bot.RegisterUpdateHandler("replies", chat.NewReplies(service))
		bot.RegisterUpdateHandler("greetings", chat.NewGreetings(service))

		runtime := lifecycle.NewRuntime()
		runtime.Register(gatekeeper.Challenges())
		runtime.Register(mod.FloodStore())
		if err := runtime.Start(ctx); err != nil {
			log.WithError(err).Fatalln("cant start runtime components")
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := runtime.Stop(stopCtx); err != nil {
				log.WithError(err).Errorln("cant stop runtime components")
			}
		}()

		registerEventSinks(ctx, telegram.NewOperations(botAPI), cfg.LogChannelID)

		updateConfig := api.NewUpdate(0)
		updateConfig.Timeout = 60
		if stored, err := client.GetKV(ctx, "update_offset"); err == nil && stored != "" {
			if offset, err := strconv.Atoi(stored); err == nil {
				updateConfig.Offset = offset
			}
		}
		updateProcessor := bot.NewUpdateProcessor(service)

		updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

		for {
			select {
			case err := <-errorChan:
				log.WithError(err).Fatalln("bot api get updates error")
			case update := <-updateChan:
				// The offset marks the update as received before dispatch; a
				// crash mid-handling skips it on restart rather than
				// replaying a moderation action.
				if err := client.SetKV(ctx, "update_offset", strconv.Itoa(update.UpdateID+1)); err != nil {
					log.WithError(err).Warnln("cant persist update offset")
				}
				// One goroutine per update, so a slow federation fan-out in
				// one chat never stalls flood windows or captcha answers
				// elsewhere.
				infra.Go("update", func() {
					if err := updateProcessor.Process(ctx, &update); err != nil {
						log.WithError(err).Errorln("cant process update")
					}
				})
			case <-ctx.Done():
				log.Infoln("no more updates")
				return
			}
		}
	})
}

// registerEventSinks fans moderation outcomes into the zap audit log and,
// when configured, a human readable line in the log channel.
func registerEventSinks(ctx context.Context, ops *telegram.Operations, logChannelID int64) {
	logLine := func(text string) {
		if logChannelID == 0 {
			return
		}
		if _, err := ops.SendMessage(ctx, logChannelID, text); err != nil {
			log.WithError(err).Warnln("cant write to log channel")
		}
	}

	event.Subscribe(event.TypeFloodAction, func(q event.Queueable) {
		e, ok := q.(*event.FloodAction)
		if !ok {
			q.Drop()
			return
		}
		observability.Audit.Info("flood action",
			zap.Int64("chat_id", e.ChatID),
			zap.Int64("user_id", e.UserID),
			zap.String("mode", e.Mode),
			zap.Int("count", e.Count),
		)
		logLine(tool.ExecTemplate(`#flood chat {{ .chat_id }}: user {{ .user_id }} hit the limit ({{ .count }} messages), action: {{ .mode }}`, map[string]any{
			"chat_id": e.ChatID,
			"user_id": e.UserID,
			"count":   e.Count,
			"mode":    e.Mode,
		}))
		q.Process()
	})

	event.Subscribe(event.TypeChallengeOutcome, func(q event.Queueable) {
		e, ok := q.(*event.ChallengeOutcome)
		if !ok {
			q.Drop()
			return
		}
		observability.Audit.Info("challenge outcome",
			zap.Int64("chat_id", e.ChatID),
			zap.Int64("user_id", e.UserID),
			zap.String("outcome", e.Outcome),
			zap.Int("retries", e.Retries),
		)
		logLine(tool.ExecTemplate(`#captcha chat {{ .chat_id }}: user {{ .user_id }} {{ .outcome }} after {{ .retries }} retries`, map[string]any{
			"chat_id": e.ChatID,
			"user_id": e.UserID,
			"outcome": e.Outcome,
			"retries": e.Retries,
		}))
		q.Process()
	})

	event.Subscribe(event.TypeWarnIssued, func(q event.Queueable) {
		e, ok := q.(*event.WarnIssued)
		if !ok {
			q.Drop()
			return
		}
		observability.Audit.Info("warn issued",
			zap.Int64("chat_id", e.ChatID),
			zap.Int64("user_id", e.UserID),
			zap.Int64("issuer_id", e.IssuerID),
			zap.Int("count", e.Count),
			zap.Bool("escalated", e.Escalated),
		)
		logLine(tool.ExecTemplate(`#warn chat {{ .chat_id }}: user {{ .user_id }} warned by {{ .issuer_id }} ({{ .count }}){{ if .escalated }}, escalated to ban{{ end }}`, map[string]any{
			"chat_id":   e.ChatID,
			"user_id":   e.UserID,
			"issuer_id": e.IssuerID,
			"count":     e.Count,
			"escalated": e.Escalated,
		}))
		q.Process()
	})

	fedSink := func(q event.Queueable) {
		e, ok := q.(*event.FedEvent)
		if !ok {
			q.Drop()
			return
		}
		observability.Audit.Info("federation action",
			zap.String("fed_id", e.FedID),
			zap.Int64("user_id", e.UserID),
			zap.String("type", e.Type()),
			zap.Int("attempted", e.Attempted),
			zap.Int("succeeded", e.Succeeded),
			zap.Int("failed", e.Failed),
		)
		logLine(tool.ExecTemplate(`#{{ .type }} fed {{ .fed_id }}: user {{ .user_id }}, {{ .succeeded }}/{{ .attempted }} chats done, {{ .failed }} failed`, map[string]any{
			"type":      e.Type(),
			"fed_id":    e.FedID,
			"user_id":   e.UserID,
			"succeeded": e.Succeeded,
			"attempted": e.Attempted,
			"failed":    e.Failed,
		}))
		q.Process()
	}
	event.Subscribe(event.TypeFedBan, fedSink)
	event.Subscribe(event.TypeFedUnban, fedSink)

	event.Subscribe(event.TypeReport, func(q event.Queueable) {
		e, ok := q.(*event.Report)
		if !ok {
			q.Drop()
			return
		}
		observability.Audit.Info("report",
			zap.Int64("chat_id", e.ChatID),
			zap.Int64("reporter_id", e.ReporterID),
			zap.Int64("target_id", e.TargetID),
		)
		logLine(tool.ExecTemplate(`#report chat {{ .chat_id }}: user {{ .reporter_id }} reported user {{ .target_id }}`, map[string]any{
			"chat_id":     e.ChatID,
			"reporter_id": e.ReporterID,
			"target_id":   e.TargetID,
		}))
		q.Process()
	})
}
