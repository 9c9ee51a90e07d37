package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"

	"github.com/classbot/nz-schedule-bot/internal/models"
	"github.com/classbot/nz-schedule-bot/internal/notify"
)

const (
	callbackClassPrefix   = "class:"
	callbackToggleLesson  = "toggle:lessons"
	callbackToggleDaily   = "toggle:daily"
	callbackAdminDistance = "admin:distance"
	callbackAdminTech     = "admin:tech"
)

// UserStore is the user persistence slice the bot needs.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, id int64) (*models.User, error)
	UpdateClass(ctx context.Context, id int64, class *string) error
	UpdateNotificationFlags(ctx context.Context, id int64, lessonUpdates, dailySchedule bool) error
}

// SettingsStore is the global toggle persistence slice the admin commands
// need.
type SettingsStore interface {
	Find(ctx context.Context) (*models.Settings, error)
	Create(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, id string, isDistanceEducation, isTechnicalWorks bool) error
}

// ScheduleReader serves cached schedules for the /schedule command.
type ScheduleReader interface {
	GetSchedule(ctx context.Context, class models.Class, date string) ([]models.ScheduleLesson, error)
	IsStale(ctx context.Context, class models.Class, now time.Time) (bool, error)
}

// RequestCounter tracks served schedule requests for the statistics page.
type RequestCounter interface {
	Increment(ctx context.Context) error
}

// telegramAPI is the slice of the Bot API client the handlers call, kept as
// an interface so handlers are testable without the network.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	AnswerCallbackQuery(config tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
}

// Bot handles user-facing Telegram commands: registration, class selection
// and notification preferences.
type Bot struct {
	api       telegramAPI
	updates   tgbotapi.UpdatesChannel
	users     UserStore
	settings  SettingsStore
	schedules ScheduleReader
	requests  RequestCounter
	adminID   int64
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// New constructs the bot around an authorized API client.
func New(api *tgbotapi.BotAPI, users UserStore, settings SettingsStore, schedules ScheduleReader, requests RequestCounter, adminID int64, location *time.Location, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates, err := api.GetUpdatesChan(updateConfig)
	if err != nil {
		return nil, fmt.Errorf("open telegram update channel: %w", err)
	}

	return &Bot{
		api:       api,
		updates:   updates,
		users:     users,
		settings:  settings,
		schedules: schedules,
		requests:  requests,
		adminID:   adminID,
		location:  location,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run consumes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-b.updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Warn("callback handling failed", zap.Error(err))
		}
	case update.Message != nil && update.Message.IsCommand():
		if err := b.handleCommand(ctx, update.Message); err != nil {
			b.logger.Warn("command handling failed",
				zap.String("command", update.Message.Command()), zap.Error(err))
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	user, err := b.ensureUser(ctx, chatID)
	if err != nil {
		return err
	}

	switch message.Command() {
	case "start":
		return b.reply(chatID, "Привіт! Я надсилаю розклад уроків і сповіщення про його зміни.\n\n"+
			"/class — обрати клас\n"+
			"/schedule — розклад на сьогодні\n"+
			"/notifications — налаштувати сповіщення")

	case "class":
		return b.sendClassKeyboard(chatID)

	case "notifications":
		if user.Class == nil {
			return b.reply(chatID, "Спершу оберіть клас: /class")
		}
		return b.sendNotificationsKeyboard(chatID, user)

	case "schedule":
		if user.Class == nil {
			return b.reply(chatID, "Спершу оберіть клас: /class")
		}
		return b.sendTodaySchedule(ctx, chatID, user.ClassValue())

	case "admin":
		if chatID != b.adminID {
			return b.reply(chatID, "Невідома команда. Спробуйте /start")
		}
		settings, err := b.ensureSettings(ctx)
		if err != nil {
			return err
		}
		return b.sendAdminKeyboard(chatID, settings)

	default:
		return b.reply(chatID, "Невідома команда. Спробуйте /start")
	}
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	data := callback.Data

	user, err := b.ensureUser(ctx, chatID)
	if err != nil {
		return err
	}

	switch {
	case strings.HasPrefix(data, callbackClassPrefix):
		class := models.Class(strings.TrimPrefix(data, callbackClassPrefix))
		if !class.Valid() {
			return b.answerCallback(callback.ID, "Невідомий клас")
		}
		value := string(class)
		if err := b.users.UpdateClass(ctx, chatID, &value); err != nil {
			return err
		}
		if err := b.answerCallback(callback.ID, "Клас збережено"); err != nil {
			return err
		}
		return b.reply(chatID, fmt.Sprintf("Ваш клас: <b>%s</b>\nТепер можна увімкнути сповіщення: /notifications", classLabel(class)))

	case data == callbackToggleLesson:
		if err := b.users.UpdateNotificationFlags(ctx, chatID, !user.IsNotifyingLessonUpdates, user.IsGettingDailySchedule); err != nil {
			return err
		}
		return b.answerCallback(callback.ID, "Налаштування збережено")

	case data == callbackToggleDaily:
		if err := b.users.UpdateNotificationFlags(ctx, chatID, user.IsNotifyingLessonUpdates, !user.IsGettingDailySchedule); err != nil {
			return err
		}
		return b.answerCallback(callback.ID, "Налаштування збережено")

	case data == callbackAdminDistance || data == callbackAdminTech:
		if chatID != b.adminID {
			return b.answerCallback(callback.ID, "")
		}
		settings, err := b.ensureSettings(ctx)
		if err != nil {
			return err
		}
		distance, tech := settings.IsDistanceEducation, settings.IsTechnicalWorks
		if data == callbackAdminDistance {
			distance = !distance
		} else {
			tech = !tech
		}
		if err := b.settings.Update(ctx, settings.ID, distance, tech); err != nil {
			return err
		}
		return b.answerCallback(callback.ID, "Збережено")

	default:
		return b.answerCallback(callback.ID, "")
	}
}

func (b *Bot) ensureUser(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := b.users.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user, err = b.users.Create(ctx, chatID)
		if err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (b *Bot) ensureSettings(ctx context.Context) (*models.Settings, error) {
	settings, err := b.settings.Find(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings, err = b.settings.Create(ctx)
		if err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func (b *Bot) sendAdminKeyboard(chatID int64, settings *models.Settings) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				toggleLabel("Дистанційне навчання", settings.IsDistanceEducation), callbackAdminDistance),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				toggleLabel("Технічні роботи", settings.IsTechnicalWorks), callbackAdminTech),
		),
	)
	msg := tgbotapi.NewMessage(chatID, "Налаштування бота:")
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTodaySchedule(ctx context.Context, chatID int64, class models.Class) error {
	now := b.now()
	today := now.In(b.location).Format("2006-01-02")

	lessons, err := b.schedules.GetSchedule(ctx, class, today)
	if err != nil {
		return err
	}
	stale, err := b.schedules.IsStale(ctx, class, now)
	if err != nil {
		return err
	}

	if b.requests != nil {
		if err := b.requests.Increment(ctx); err != nil {
			b.logger.Warn("increment schedule requests", zap.Error(err))
		}
	}

	day, err := time.Parse("2006-01-02", today)
	if err != nil {
		return err
	}
	return b.reply(chatID, notify.FormatDailySchedule(lessons, day, b.location, stale))
}

func (b *Bot) sendClassKeyboard(chatID int64) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(classLabel(models.Class11A), callbackClassPrefix+string(models.Class11A)),
			tgbotapi.NewInlineKeyboardButtonData(classLabel(models.Class11B), callbackClassPrefix+string(models.Class11B)),
		),
	)
	msg := tgbotapi.NewMessage(chatID, "Оберіть свій клас:")
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendNotificationsKeyboard(chatID int64, user *models.User) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				toggleLabel("Зміни в розкладі", user.IsNotifyingLessonUpdates), callbackToggleLesson),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				toggleLabel("Ранковий розклад", user.IsGettingDailySchedule), callbackToggleDaily),
		),
	)
	msg := tgbotapi.NewMessage(chatID, "Сповіщення:")
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) reply(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) answerCallback(callbackID, text string) error {
	_, err := b.api.AnswerCallbackQuery(tgbotapi.NewCallback(callbackID, text))
	return err
}

func classLabel(class models.Class) string {
	if class == models.Class11A {
		return "11-А"
	}
	return "11-Б"
}

func toggleLabel(name string, enabled bool) string {
	if enabled {
		return "✅ " + name
	}
	return "☑️ " + name
}
