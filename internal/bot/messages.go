package bot

const (
	msgWelcome            = "Hello! I show your posts.\nUse /login to sign in."
	msgEnterCredentials   = "Please enter your username and password as:\nlogin:password"
	msgBadCredentialsForm = "Wrong format. Use login:password"
	msgBadCredentials     = "Incorrect username or password. Try again."
	msgLoggedIn           = "Signed in! Use /posts to see your posts."
	msgLoginFailed        = "Login failed: %v"
	msgLoggedOut          = "You have been logged out."
	msgNotLoggedIn        = "You are not logged in."
	msgUseLogin           = "Please sign in with /login"
	msgUseStart           = "Please use /start to begin."
	msgSessionExpired     = "Your session has expired. Please sign in again with /login"
	msgNoPosts            = "You have no posts yet!"
	msgPostsPage          = "Page %d\nShowing %d of %d posts\n\nChoose a post:"
	msgPostsFailed        = "Could not load posts: %v"
	msgPostNotFound       = "Post not found or you have no access to it"
	msgPostFailed         = "Could not load the post: %v"
	msgPostDetail         = "📌 %s\n\n📝 %s\n\n🕒 %s"
	msgUnknownCommand     = "Command '%s' not found.\n\nAvailable commands:\n%s"

	btnPrev = "⬅️ Back"
	btnNext = "Next ➡️"
	btnList = "🔙 Back to list"
)

// Commands lists the commands the bot understands, in menu order.
var Commands = []struct {
	Name        string
	Description string
}{
	{"/start", "Start working with the bot"},
	{"/login", "Sign in"},
	{"/posts", "Show your posts"},
	{"/logout", "Sign out"},
}
