package bot

// User-facing reply strings. Kept together so the chat voice stays
// consistent.
const (
	startText = "🎬 Catalog bot started!\n\n" +
		"Send a title in the request group and I'll search our collection.\n" +
		"Operators: use /add to register a new entry."

	helpText = "🎬 Catalog Bot Help\n\n" +
		"Commands:\n" +
		"/start - Start the bot\n" +
		"/help - Show this help message\n" +
		"/add - Add a catalog entry (operators only)\n" +
		"/cancel - Cancel an entry in progress\n\n" +
		"How to use:\n" +
		"1. Send a title in the request group\n" +
		"2. The bot searches the collection\n" +
		"3. Tap a button to open the result"

	permissionDeniedText = "❌ You don't have permission to use this command."

	promptTitleText   = "📝 Send the title for the new catalog entry."
	titleTooShortText = "Title must be at least 2 characters. Send the title again."
	promptLinkFmt     = "🔗 Got '%s'. Now send the retrieval link (must start with http:// or https://)."
	badLinkText       = "That doesn't look like a link. It must start with http:// or https://. Send it again."
	committedFmt      = "✅ Added '%s'. The catalog now has %d entries."
	flushWarningText  = "\n⚠️ Saving to disk failed; the entry is live in memory but may be lost on restart."

	cancelledText       = "Cancelled."
	nothingToCancelText = "Nothing to cancel."

	notFoundFmt = "❌ '%s' not found in our collection.\n\n" +
		"📝 Please ask an operator to add it with the correct title.\n" +
		"👤 Requested by: %s\n\n" +
		"📚 Catalog size: %d"

	genericErrorText = "❌ Something went wrong while searching. Please try again."
)
