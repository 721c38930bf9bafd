package auth

import (
	"fmt"
	"strings"
)

// ShowCookieExtractionGuide prints how to copy the session cookie from a
// logged-in browser
func ShowCookieExtractionGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("📚 小红书 COOKIE EXTRACTION GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("Search pages and comment feeds render fully only for a logged-in session.")
	fmt.Println("Copy the Cookie header of your browser session:")
	fmt.Println()

	fmt.Println("🌐 STEP 1: Open https://www.xiaohongshu.com/explore and log in")
	fmt.Println()

	fmt.Println("🔧 STEP 2: Open Developer Tools")
	fmt.Println("   • Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println()

	fmt.Println("📡 STEP 3: Network tab → refresh → click any request to edith.xiaohongshu.com")
	fmt.Println("   → Headers → Request Headers → copy the whole 'Cookie:' value")
	fmt.Println()

	fmt.Println("🔑 The value must contain these cookies:")
	fmt.Println("   ┌─────────────┬──────────────────────────────────────────────┐")
	fmt.Println("   │ web_session │ the login session (required)                 │")
	fmt.Println("   │ a1, webId   │ device identifiers                           │")
	fmt.Println("   └─────────────┴──────────────────────────────────────────────┘")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • The cookie gives full access to your account. Never share it.")
	fmt.Println("   • It is stored in the system keychain or an encrypted file.")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickExtractGuide shows a condensed version for experienced users
func ShowQuickExtractGuide() {
	fmt.Println("\n🍪 Quick Guide: F12 → Network → refresh → any xiaohongshu.com request → Headers → Cookie")
	fmt.Println("   Need: web_session=...")
}
