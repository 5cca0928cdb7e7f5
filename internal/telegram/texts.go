package telegram

import (
	"fmt"
	"html"
	"math"
	"strconv"
	"time"

	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
	"github.com/magabrotheeeer/subscription-bot/internal/services/account"
	"github.com/magabrotheeeer/subscription-bot/internal/services/freeclaim"
)

// Кнопки главного меню.
const (
	BtnStatus     = "📊 وضعیت اشتراک"
	BtnBuy        = "🛒 خرید اشتراک"
	BtnFree       = "🎁 اشتراک رایگان"
	BtnAdminPanel = "👨‍💼 پنل ادمین"
)

// Данные inline-кнопок.
const (
	cbBackToMenu = "back_to_menu"
	cbUsers      = "users"
	cbUsersPfx   = "users_"
	cbPlanPfx    = "plan_"
)

const (
	txtWelcome          = "سلام! 👋\nبرای شروع، یکی از گزینه‌ها را انتخاب کنید:"
	txtUseMenu          = "لطفاً از دکمه‌های منو استفاده کنید."
	txtMainMenu         = "منوی اصلی:"
	txtNoSubscription   = "❌ اشتراک فعالی ندارید."
	txtChooseUsers      = "تعداد کاربران را انتخاب کنید:"
	txtChoosePlan       = "پلن مورد نظر را انتخاب کنید:"
	txtStartPurchase    = "لطفاً از طریق منوی «خرید اشتراک» شروع کنید."
	txtReceiptSent      = "✅ رسید ارسال شد. پس از تأیید، اشتراک فعال می‌شود."
	txtAccessDenied     = "❌ دسترسی محدود!"
	txtActivated        = "✅ فعال شد."
	txtRejected         = "❌ رد شد."
	txtAlreadyDecided   = "این رسید قبلاً بررسی شده است."
	txtDecisionFailed   = "⚠️ ثبت تصمیم انجام نشد، دوباره تلاش کنید."
	txtInvalidDecision  = "⚠️ اطلاعات رسید نامعتبر است."
	txtTryAgain         = "⚠️ خطایی رخ داد، لطفاً دوباره تلاش کنید."
	txtBack             = "« بازگشت"
	txtBackToMenu       = "« بازگشت به منو"
	txtNoActiveAccounts = "هیچ کاربر فعالی وجود ندارد."
	txtNoPending        = "هیچ رسیدی در انتظار نیست."
	txtNoHandle         = "بدون آیدی"
)

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func statusText(v account.View) string {
	if !v.Active() {
		return txtNoSubscription
	}
	a := v.Account
	return fmt.Sprintf("📊 وضعیت اشتراک:\n📦 پلن: %s\n👥 کاربر: %d\n⏳ باقی‌مانده: %d روز\n📅 انقضا: %s",
		a.Plan, a.UserCount, v.RemainingDays, a.Expiry.Format("2006/01/02"))
}

func paymentText(plan catalog.Plan, userCount int, price float64, cfg config.Purchase) string {
	return fmt.Sprintf("💳 پرداخت دستی\n\n"+
		"📦 پلن: %s\n"+
		"👥 تعداد کاربر: %d\n"+
		"📅 مدت: %d روز\n"+
		"💰 مبلغ: $%s\n\n"+
		"لطفاً پرداخت را به یکی از موارد زیر انجام دهید:\n\n"+
		"💳 شماره کارت:\n%s\n"+
		"📱 همراه‌بانک: %s\n\n"+
		"✅ سپس عکس رسید را اینجا ارسال کنید.",
		plan.Name, userCount, plan.Days, formatPrice(price), cfg.CardNumber, cfg.MobileBank)
}

func receiptCaption(r models.Receipt, planName string) string {
	handle := r.Username
	if handle == "" {
		handle = "N/A"
	}
	return fmt.Sprintf("📥 رسید جدید\n👤 %s (@%s)\n🆔 %s\n📦 %s\n👥 %d کاربر\n💰 $%s",
		r.FullName, handle, r.UserID, planName, r.UserCount, formatPrice(r.Price))
}

func rateLimitedText(remaining time.Duration) string {
	minutes := int(math.Ceil(remaining.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("⏳ شما می‌توانید هر ۲ ساعت یک‌بار اشتراک رایگان دریافت کنید.\n"+
		"لطفاً بعداً دوباره امتحان کنید.\n⏱️ زمان باقی‌مانده: %d دقیقه", minutes)
}

func freeGrantCaption(g *freeclaim.Grant, now time.Time) string {
	left := g.Expiry.Sub(now)
	period := "کمتر از یک روز"
	if days := int(left / (24 * time.Hour)); days >= 1 {
		period = fmt.Sprintf("%d روز", days)
	}
	return fmt.Sprintf("🎉 اشتراک رایگان!\n\n"+
		"📌 اطلاعات اشتراک شما:\n"+
		"✅ نام: %s\n"+
		"⭐️ نوع: اشتراک رایگان\n"+
		"🌐 مقدار حجم: %s\n"+
		"⏱️ مقدار زمان: %s\n"+
		"🔗 کانفیگ شما:\n<pre>%s</pre>",
		html.EscapeString(g.Title), html.EscapeString(g.Traffic), period, html.EscapeString(g.ConfigLink))
}
